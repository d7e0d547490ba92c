package server

import (
	"context"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/caching"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/listener"
	"github.com/revolution1/unitgate/metrics"
	"github.com/revolution1/unitgate/middleware"
	"github.com/revolution1/unitgate/proxy"
	"github.com/revolution1/unitgate/router"
	"github.com/revolution1/unitgate/types"
	"github.com/savsgio/gotils/nocopy"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	owner = "gateway"

	// DefaultShutdownGrace is how long in-flight requests may take once a
	// shutdown started, connections still open after it are closed.
	DefaultShutdownGrace = 5 * time.Second
)

var ErrRestartRequired = errors.New("listeners and settings changes require a restart")

type Options struct {
	// Registry provides the listener sockets, keys not bound yet are bound
	// by Serve.
	Registry *listener.Registry
	Attach   Attachments
	// Cache stores route decisions, nil disables caching.
	Cache     caching.Cache
	Proxy     *proxy.Client
	AccessLog bool
	// ShutdownGrace defaults to DefaultShutdownGrace.
	ShutdownGrace time.Duration
}

type state struct {
	conf       *types.Config
	table      *router.Table
	generation uint64
	loaded     time.Time
}

// Server serves every listener of a document.
type Server struct {
	nocopy.NoCopy

	registry  *listener.Registry
	proxy     *proxy.Client
	cache     caching.Cache
	apps      *applications
	accessLog bool
	grace     time.Duration

	current atomic.Value // *state
	reload  sync.Mutex
	started time.Time

	mu      sync.Mutex
	servers map[string]*fasthttp.Server
	lns     map[string]*trackedListener
	hits    map[string]*uint64
}

// New prepares a server for a validated document.
func New(conf *types.Config, opts Options) (*Server, error) {
	if conf != nil {
		config.ApplyDefaults(conf)
	}
	if err := config.Validate(conf); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	for name := range opts.Attach {
		if _, ok := conf.Applications[name]; !ok {
			return nil, errors.Errorf("attached application %s not found", name)
		}
	}
	s := &Server{
		registry:  opts.Registry,
		proxy:     opts.Proxy,
		cache:     opts.Cache,
		apps:      newApplications(opts.Attach),
		accessLog: opts.AccessLog,
		grace:     opts.ShutdownGrace,
		started:   time.Now(),
		servers:   make(map[string]*fasthttp.Server),
		lns:       make(map[string]*trackedListener),
		hits:      make(map[string]*uint64),
	}
	if s.registry == nil {
		s.registry = listener.NewRegistry()
	}
	if s.cache == nil {
		s.cache = caching.Nop{}
	}
	if s.proxy == nil {
		s.proxy = proxy.NewClient(0)
	}
	if s.grace <= 0 {
		s.grace = DefaultShutdownGrace
	}
	table, err := router.New(conf, s.cache)
	if err != nil {
		return nil, err
	}
	for key := range conf.Listeners {
		var n uint64
		s.hits[key] = &n
	}
	s.apps.sync(conf)
	s.current.Store(&state{conf: conf, table: table, generation: 1, loaded: time.Now()})
	metrics.Generation.Set(1)
	return s, nil
}

func (s *Server) state() *state {
	return s.current.Load().(*state)
}

// Config is the document in use, it must not be modified.
func (s *Server) Config() *types.Config {
	return s.state().conf
}

func (s *Server) Generation() uint64 {
	return s.state().generation
}

func (s *Server) newFastServer(key string, h *types.HTTPSettings) *fasthttp.Server {
	handler := middleware.UseMiddleWares(
		s.handler(key),
		middleware.PanicHandler,
		middleware.AccessLogMetricHandler("", s.accessLog),
	)
	return &fasthttp.Server{
		Name:               "unitgate",
		Handler:            handler,
		ErrorHandler:       errorHandler,
		TCPKeepalive:       true,
		ReadTimeout:        time.Duration(*h.HeaderReadTimeout+*h.BodyReadTimeout) * time.Second,
		WriteTimeout:       time.Duration(*h.SendTimeout) * time.Second,
		IdleTimeout:        time.Duration(*h.IdleTimeout) * time.Second,
		MaxRequestBodySize: int(*h.MaxBodySize),
		Logger:             middleware.LeveledLogger{Level: log.TraceLevel, Name: "listener " + key},
	}
}

func errorHandler(ctx *fasthttp.RequestCtx, err error) {
	if errors.Is(err, fasthttp.ErrBodyTooLarge) {
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusRequestEntityTooLarge), fasthttp.StatusRequestEntityTooLarge)
		return
	}
	log.WithError(err).Debug("error while reading request")
	ctx.Error(fasthttp.StatusMessage(fasthttp.StatusBadRequest), fasthttp.StatusBadRequest)
}

// Serve runs every listener until ctx is done or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	st := s.state()
	keys := make([]string, 0, len(st.conf.Listeners))
	for key := range st.conf.Listeners {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if err := s.registry.Bind(keys...); err != nil {
		return err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	s.mu.Lock()
	for _, key := range keys {
		raw, err := s.registry.Acquire(key, owner)
		if err != nil {
			s.mu.Unlock()
			s.shutdown()
			return errors.Wrapf(err, "server failed to acquire listener")
		}
		ln := newTrackedListener(raw)
		srv := s.newFastServer(key, st.conf.HTTP())
		s.servers[key] = srv
		s.lns[key] = ln
		key := key
		eg.Go(func() error {
			log.Infof("listener %s serving at %s", key, ln.Addr())
			// a listener closed by shutdown before Serve started is not an error
			if err := srv.Serve(ln); err != nil && egCtx.Err() == nil {
				return errors.Wrapf(err, "listener %s", key)
			}
			return nil
		})
	}
	s.mu.Unlock()
	eg.Go(func() error {
		<-egCtx.Done()
		s.shutdown()
		return nil
	})
	return eg.Wait()
}

// shutdown stops every listener in parallel. Requests in flight get the grace
// period, idle keep-alive connections are closed once it is over.
func (s *Server) shutdown() {
	s.mu.Lock()
	servers := s.servers
	lns := s.lns
	s.servers = make(map[string]*fasthttp.Server)
	s.lns = make(map[string]*trackedListener)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for key, srv := range servers {
		key, srv, ln := key, srv, lns[key]
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := make(chan error, 1)
			go func() { done <- srv.Shutdown() }()
			var err error
			select {
			case err = <-done:
			case <-time.After(s.grace):
				log.WithField("listener", key).Warnf("closing %d connections still open after %s", ln.open(), s.grace)
				ln.closeConns()
				err = <-done
			}
			// Serve may not have taken the listener yet
			_ = ln.Close()
			if err != nil {
				log.WithError(err).WithField("listener", key).Error("error while shutting down listener")
			}
			log.Infof("listener %s stopped", key)
			s.registry.Release(key)
		}()
	}
	wg.Wait()
}

// Reload swaps routes and applications. Documents that change the listener
// set or the settings are refused, the running document stays in use.
func (s *Server) Reload(conf *types.Config) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.Reloads.WithLabelValues(result).Inc()
	}()
	if conf != nil {
		config.ApplyDefaults(conf)
	}
	if err := config.Validate(conf); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	s.reload.Lock()
	defer s.reload.Unlock()
	old := s.state()
	if !sameListeners(old.conf, conf) || !reflect.DeepEqual(old.conf.HTTP(), conf.HTTP()) {
		return ErrRestartRequired
	}
	for name := range s.apps.attached {
		if _, ok := conf.Applications[name]; !ok {
			return errors.Errorf("attached application %s not found", name)
		}
	}
	table, err := router.New(conf, s.cache)
	if err != nil {
		return err
	}
	s.apps.sync(conf)
	next := &state{conf: conf, table: table, generation: old.generation + 1, loaded: time.Now()}
	s.current.Store(next)
	s.cache.Clear()
	metrics.Generation.Set(float64(next.generation))
	log.Infof("configuration generation %d loaded", next.generation)
	return nil
}

func sameListeners(a, b *types.Config) bool {
	if len(a.Listeners) != len(b.Listeners) {
		return false
	}
	for key := range a.Listeners {
		if _, ok := b.Listeners[key]; !ok {
			return false
		}
	}
	return true
}
