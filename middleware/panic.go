package middleware

import (
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"runtime/debug"
)

// DebugMode writes the stack of a recovered panic into the response.
var DebugMode bool

func PanicHandler(h fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("stack", string(debug.Stack())).Errorf("panic %v", r)
				ctx.ResetBody()
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				if DebugMode {
					_, _ = ctx.Write(debug.Stack())
				}
			}
		}()
		h(ctx)
	}
}
