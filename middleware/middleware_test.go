package middleware

import (
	log "github.com/sirupsen/logrus"
	assertion "github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"testing"
)

func TestUseMiddleWares(t *testing.T) {
	assert := assertion.New(t)
	var order []string
	mark := func(name string) MiddleWare {
		return func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				h(ctx)
			}
		}
	}
	h := UseMiddleWares(func(ctx *fasthttp.RequestCtx) {
		order = append(order, "handler")
	}, mark("inner"), mark("outer"))
	h(&fasthttp.RequestCtx{})
	assert.Equal([]string{"outer", "inner", "handler"}, order)
}

func TestPanicHandler(t *testing.T) {
	assert := assertion.New(t)
	h := PanicHandler(func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("partial")
		panic("boom")
	})
	ctx := &fasthttp.RequestCtx{}
	assert.NotPanics(func() { h(ctx) })
	assert.Equal(fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Empty(ctx.Response.Body())
}

func TestAccessLogMetricHandler(t *testing.T) {
	assert := assertion.New(t)
	h := AccessLogMetricHandler("", true)(func(ctx *fasthttp.RequestCtx) {
		ctx.SetUserValue(ListenerKey, "*:8000")
		ctx.SetUserValue(ActionKey, "return")
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/healthz")
	ctx.Request.Header.SetUserAgent("kube-probe/1.20")
	h(ctx)
	assert.Equal(fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal("*:8000", UserString(ctx, ListenerKey))
	assert.Equal("", UserString(ctx, "missing"))
}

func TestGuessIsHealthChecker(t *testing.T) {
	assert := assertion.New(t)
	assert.True(guessIsHealthChecker("kube-probe/1.20"))
	assert.True(guessIsHealthChecker("ELB-HealthChecker/2.0"))
	assert.True(guessIsHealthChecker("GoogleHC/1.0"))
	assert.False(guessIsHealthChecker("curl/7.68.0"))
}

func TestLeveledLogger(t *testing.T) {
	assert := assertion.New(t)
	hook := &captureHook{}
	log.AddHook(hook)
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	level := log.GetLevel()
	log.SetLevel(log.TraceLevel)
	defer log.SetLevel(level)

	LeveledLogger{Level: log.WarnLevel, Name: "listener *:8000"}.Printf("closed %d", 3)
	if assert.Len(hook.entries, 1) {
		assert.Equal(log.WarnLevel, hook.entries[0].Level)
		assert.Equal("closed 3", hook.entries[0].Message)
		assert.Equal("listener *:8000", hook.entries[0].Data["server"])
	}
}

type captureHook struct {
	entries []*log.Entry
}

func (h *captureHook) Levels() []log.Level { return log.AllLevels }

func (h *captureHook) Fire(e *log.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}
