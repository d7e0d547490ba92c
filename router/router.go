package router

import (
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/caching"
	"github.com/revolution1/unitgate/types"
	log "github.com/sirupsen/logrus"
	"strconv"
	"sync/atomic"
)

var (
	ErrNoMatch         = errors.New("no route step matches the request")
	ErrUnknownListener = errors.New("unknown listener")
	ErrRouteLoop       = errors.New("route pass chain is too deep")
)

// uris longer than this are resolved but never cached
const maxCachedURI = 1024

type Kind int

const (
	KindApplication Kind = iota
	KindProxy
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindProxy:
		return "proxy"
	case KindReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Decision is the terminal action a request resolves to.
type Decision struct {
	Kind        Kind
	Application string
	Proxy       *types.ProxyTarget
	Status      int
	Location    string

	// Route and Step locate the deciding step, Route is empty when the
	// listener passes straight to an application.
	Route string
	Step  int
}

func (d *Decision) String() string {
	var s string
	switch d.Kind {
	case KindApplication:
		s = "pass applications/" + d.Application
	case KindProxy:
		s = "proxy " + d.Proxy.Raw
	case KindReturn:
		s = "return " + strconv.Itoa(d.Status)
		if d.Location != "" {
			s += " " + d.Location
		}
	}
	if d.Route != "" {
		s += " (routes/" + d.Route + "/" + strconv.Itoa(d.Step) + ")"
	}
	return s
}

type step struct {
	matcher  *matcher
	pass     types.PassTarget
	kind     types.TargetKind
	name     string
	proxy    *types.ProxyTarget
	status   int
	location string
}

var tableSeq uint64

// Table is the compiled form of the listeners and routes of a document.
// It is safe for concurrent use. Tables may share one cache, keys carry the
// table id so a reloaded table never sees decisions of the previous one.
type Table struct {
	id        string
	listeners map[string]types.PassTarget
	routes    map[string][]*step
	cache     caching.Cache
}

// New compiles a validated document, the cache may be nil.
func New(conf *types.Config, cache caching.Cache) (*Table, error) {
	if cache == nil {
		cache = caching.Nop{}
	}
	t := &Table{
		id:        strconv.FormatUint(atomic.AddUint64(&tableSeq, 1), 36),
		listeners: make(map[string]types.PassTarget, len(conf.Listeners)),
		routes:    make(map[string][]*step, len(conf.Routes)),
		cache:     cache,
	}
	for key, l := range conf.Listeners {
		if _, _, err := l.Pass.Parse(); err != nil {
			return nil, errors.Wrapf(err, "listeners/%s", key)
		}
		t.listeners[key] = l.Pass
	}
	for name, route := range conf.Routes {
		steps := make([]*step, 0, len(route))
		for i, s := range route {
			cs, err := compileStep(s)
			if err != nil {
				return nil, errors.Wrapf(err, "routes/%s/%d", name, i)
			}
			steps = append(steps, cs)
		}
		t.routes[name] = steps
	}
	return t, nil
}

func compileStep(s *types.Step) (*step, error) {
	if s == nil || s.Action == nil {
		return nil, errors.New("missing action")
	}
	cs := &step{}
	if s.Match != nil && len(s.Match.URI) > 0 {
		cs.matcher = compileMatcher(s.Match.URI)
	}
	a := s.Action
	switch {
	case a.Pass != "":
		kind, name, err := a.Pass.Parse()
		if err != nil {
			return nil, err
		}
		cs.pass, cs.kind, cs.name = a.Pass, kind, name
	case a.Proxy != "":
		p, err := types.ParseProxyTarget(a.Proxy)
		if err != nil {
			return nil, err
		}
		cs.proxy = p
	case a.Return != 0:
		cs.status, cs.location = a.Return, a.Location
	default:
		return nil, errors.New("empty action")
	}
	return cs, nil
}

// Resolve finds the decision for a request path arriving on a listener key.
// Decisions are shared between requests and must not be modified.
func (t *Table) Resolve(listener, uri string) (*Decision, error) {
	cacheable := len(uri) <= maxCachedURI
	key := t.id + "\x00" + listener + "\x00" + uri
	if cacheable {
		if v, ok := t.cache.Get(key); ok {
			if d, ok := v.(*Decision); ok {
				return d, nil
			}
		}
	}
	target, ok := t.listeners[listener]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownListener, "%s", listener)
	}
	d, err := t.follow(target, uri)
	if err != nil {
		return nil, err
	}
	if cacheable {
		t.cache.Set(key, d, int64(len(key)))
	}
	return d, nil
}

func (t *Table) follow(target types.PassTarget, uri string) (*Decision, error) {
	kind, name, _ := target.Parse()
	route := ""
	for depth := 0; depth <= len(t.routes); depth++ {
		if kind == types.TargetApplication {
			return &Decision{Kind: KindApplication, Application: name, Route: route}, nil
		}
		steps, ok := t.routes[name]
		if !ok {
			return nil, errors.Errorf("routes/%s not found", name)
		}
		route = name
		matched := false
		for i, s := range steps {
			if s.matcher != nil && !s.matcher.match(uri) {
				continue
			}
			matched = true
			switch {
			case s.proxy != nil:
				return &Decision{Kind: KindProxy, Proxy: s.proxy, Route: route, Step: i}, nil
			case s.status != 0:
				return &Decision{Kind: KindReturn, Status: s.status, Location: s.location, Route: route, Step: i}, nil
			case s.kind == types.TargetApplication:
				return &Decision{Kind: KindApplication, Application: s.name, Route: route, Step: i}, nil
			}
			log.Tracef("routes/%s/%d passes to %s", route, i, s.pass)
			kind, name = s.kind, s.name
			break
		}
		if !matched {
			return nil, errors.Wrapf(ErrNoMatch, "routes/%s", route)
		}
	}
	return nil, ErrRouteLoop
}

// Listeners returns the listener keys of the table.
func (t *Table) Listeners() []string {
	keys := make([]string, 0, len(t.listeners))
	for k := range t.listeners {
		keys = append(keys, k)
	}
	return keys
}

// Purge drops every cached decision.
func (t *Table) Purge() {
	t.cache.Clear()
}

func (t *Table) Close() {
	t.cache.Close()
}
