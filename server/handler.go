package server

import (
	"github.com/revolution1/unitgate/metrics"
	"github.com/revolution1/unitgate/middleware"
	"github.com/revolution1/unitgate/proxy"
	"github.com/revolution1/unitgate/router"
	"github.com/revolution1/unitgate/types"
	"github.com/savsgio/gotils"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"strconv"
	"sync/atomic"
)

func (s *Server) handler(key string) fasthttp.RequestHandler {
	hits := s.hits[key]
	return func(ctx *fasthttp.RequestCtx) {
		atomic.AddUint64(hits, 1)
		ctx.SetUserValue(middleware.ListenerKey, key)
		st := s.state()
		d, err := st.table.Resolve(key, gotils.B2S(ctx.Path()))
		if err != nil {
			ctx.SetUserValue(middleware.ActionKey, "none")
			log.WithError(err).WithField("listener", key).Debugf("no decision for %s", ctx.Path())
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
			return
		}
		ctx.SetUserValue(middleware.ActionKey, d.Kind.String())
		switch d.Kind {
		case router.KindReturn:
			s.writeReturn(ctx, d)
		case router.KindProxy:
			if err := s.forward(ctx, d.Proxy); err != nil {
				metrics.ProxyErrors.WithLabelValues(d.Proxy.Raw).Inc()
			}
		case router.KindApplication:
			s.dispatchApplication(ctx, d.Application)
		}
	}
}

func (s *Server) writeReturn(ctx *fasthttp.RequestCtx, d *router.Decision) {
	ctx.ResetBody()
	ctx.SetStatusCode(d.Status)
	if d.Location != "" {
		ctx.Response.Header.Set(fasthttp.HeaderLocation, d.Location)
	}
	if d.Status >= 400 {
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(fasthttp.StatusMessage(d.Status))
	}
}

// dispatchApplication forwards to the attached upstream of the application,
// applications without one answer 503.
func (s *Server) dispatchApplication(ctx *fasthttp.RequestCtx, name string) {
	target := s.apps.target(name)
	metrics.AppRequests.WithLabelValues(name, strconv.FormatBool(target != nil)).Inc()
	if target == nil {
		s.apps.record(name, true)
		ctx.Error("application "+name+" is not attached", fasthttp.StatusServiceUnavailable)
		return
	}
	err := s.forward(ctx, target)
	s.apps.record(name, err != nil)
	if err != nil {
		metrics.ProxyErrors.WithLabelValues(target.Raw).Inc()
	}
}

func (s *Server) forward(ctx *fasthttp.RequestCtx, target *types.ProxyTarget) error {
	if proxy.IsWebSocket(ctx) {
		return s.proxy.ForwardWebSocket(ctx, target)
	}
	return s.proxy.Forward(ctx, target)
}
