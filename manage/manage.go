package manage

import (
	"context"
	"github.com/fasthttp/router"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/metrics"
	"github.com/revolution1/unitgate/middleware"
	"github.com/revolution1/unitgate/server"
	"github.com/revolution1/unitgate/state"
	"github.com/revolution1/unitgate/types"
	"github.com/revolution1/unitgate/utils"
	"github.com/savsgio/gotils/nocopy"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
	"net"
	"os"
	"time"
)

// Gateway is the running document as seen by the control API.
type Gateway interface {
	Config() *types.Config
	Status() *server.Status
	Reload(conf *types.Config) error
}

// History lists the recorded revisions of the document.
type History interface {
	History(limit int) ([]state.Revision, error)
}

type Manage struct {
	nocopy.NoCopy
	gw      Gateway
	history History
}

// NewManage serves gw, history may be nil when no state is kept.
func NewManage(gw Gateway, history History) *Manage {
	return &Manage{gw: gw, history: history}
}

func (m *Manage) RegisterHandler(r *router.Router) {
	r.GET("/debug/pprof/{name:*}", pprofhandler.PprofHandler)
	r.GET("/metrics", metrics.PrometheusHandler)
	r.GET("/status", m.Status)
	r.GET("/config", m.GetConfig)
	r.GET("/config/{path:*}", m.GetConfig)
	r.PUT("/config", m.PutConfig)
	if m.history != nil {
		r.GET("/history", m.History)
	}
	r.GET("/", m.Index)
}

func (m *Manage) Handler() fasthttp.RequestHandler {
	r := router.New()
	m.RegisterHandler(r)
	return middleware.UseMiddleWares(
		r.Handler,
		middleware.PanicHandler,
		middleware.Cors,
		fasthttp.CompressHandler,
		middleware.AccessLogMetricHandler("[Control] ", true),
	)
}

func (m *Manage) Index(ctx *fasthttp.RequestCtx) {
	_, _ = ctx.WriteString("UNITGATE CONTROL API")
}

func (m *Manage) GetConfig(ctx *fasthttp.RequestCtx) {
	path, _ := ctx.UserValue("path").(string)
	v, err := config.Lookup(m.gw.Config(), path)
	if errors.Is(err, config.ErrPathNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, v)
}

// PutConfig replaces the running document with the request body.
func (m *Manage) PutConfig(ctx *fasthttp.RequestCtx) {
	conf, err := config.Parse(ctx.PostBody())
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}
	if err := m.gw.Reload(conf); err != nil {
		code := fasthttp.StatusBadRequest
		if errors.Is(err, server.ErrRestartRequired) {
			code = fasthttp.StatusConflict
		}
		writeError(ctx, code, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"success": "Reconfiguration done."})
}

func (m *Manage) Status(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, m.gw.Status())
}

func (m *Manage) History(ctx *fasthttp.RequestCtx) {
	revs, err := m.history.History(ctx.QueryArgs().GetUintOrZero("limit"))
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, revs)
}

func writeError(ctx *fasthttp.RequestCtx, code int, err error) {
	writeJSON(ctx, code, map[string]string{"error": err.Error()})
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, v interface{}) {
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "    ")
	if err != nil {
		log.WithError(err).Error("unable to encode control API response")
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(append(body, '\n'))
}

// Listen opens the control socket. A stale unix socket file is removed first.
func Listen(addr string) (net.Listener, error) {
	network, address, err := utils.ControlAddress(addr)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "unable to remove stale socket %s", address)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on control address %s", addr)
	}
	return ln, nil
}

// Serve runs the control API on ln until ctx is done.
func (m *Manage) Serve(ctx context.Context, ln net.Listener) error {
	srv := &fasthttp.Server{
		Name:         "unitgate control",
		Handler:      m.Handler(),
		TCPKeepalive: true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  180 * time.Second,
		Logger:       middleware.LeveledLogger{Level: log.TraceLevel, Name: "control"},
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("%s listening at %s", srv.Name, ln.Addr())
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return errors.Wrapf(err, "%s exited", srv.Name)
	case <-ctx.Done():
		log.Infof("shutting down %s...", srv.Name)
		if err := srv.Shutdown(); err != nil {
			log.WithError(err).WithField("name", srv.Name).Error("error while shutting down server")
		}
		return nil
	}
}
