package middleware

import (
	"github.com/valyala/fasthttp"
)

type MiddleWare func(h fasthttp.RequestHandler) fasthttp.RequestHandler

// UseMiddleWares wraps handler in order, the last middleware sees the
// request first.
func UseMiddleWares(handler fasthttp.RequestHandler, middleware ...MiddleWare) fasthttp.RequestHandler {
	for _, m := range middleware {
		handler = m(handler)
	}
	return handler
}
