package proxy

import (
	"github.com/revolution1/unitgate/types"
	assertion "github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func serveUnix(t *testing.T, h fasthttp.RequestHandler) (string, func()) {
	dir, err := ioutil.TempDir("", "unitgate-proxy")
	if err != nil {
		t.Fatal(err)
	}
	sock := filepath.Join(dir, "control.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	s := &fasthttp.Server{Handler: h}
	go func() { _ = s.Serve(ln) }()
	return sock, func() {
		_ = s.Shutdown()
		_ = os.RemoveAll(dir)
	}
}

func newCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.Header.Set("Keep-Alive", "timeout=5")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 40000}, nil)
	return ctx
}

func TestForwardUnix(t *testing.T) {
	assert := assertion.New(t)
	var seenXFF, seenKeepAlive, seenPath, seenEncoding string
	sock, stop := serveUnix(t, func(ctx *fasthttp.RequestCtx) {
		seenXFF = string(ctx.Request.Header.Peek(fasthttp.HeaderXForwardedFor))
		seenKeepAlive = string(ctx.Request.Header.Peek("Keep-Alive"))
		seenPath = string(ctx.Path())
		seenEncoding = string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding))
		ctx.Response.Header.Set("X-Status", "ok")
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"connections":{"active":1}}`)
	})
	defer stop()

	target, err := types.ParseProxyTarget("http://unix:" + sock)
	assert.NoError(err)
	c := NewClient(time.Second)
	ctx := newCtx(fasthttp.MethodGet, "http://example.com/status")
	ctx.Request.Header.Set(fasthttp.HeaderAcceptEncoding, "gzip, br")
	assert.NoError(c.Forward(ctx, target))
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(`{"connections":{"active":1}}`, string(ctx.Response.Body()))
	assert.Equal("ok", string(ctx.Response.Header.Peek("X-Status")))
	assert.Equal("10.0.0.7", seenXFF)
	assert.Equal("", seenKeepAlive)
	assert.Equal("/status", seenPath)
	assert.Equal("gzip, br", seenEncoding)

	// the host client is reused
	assert.Len(c.clients, 1)
	assert.NoError(c.Forward(newCtx(fasthttp.MethodGet, "http://example.com/status"), target))
	assert.Len(c.clients, 1)
}

func TestForwardUnavailable(t *testing.T) {
	assert := assertion.New(t)
	target, err := types.ParseProxyTarget("http://unix:/nonexistent/unitgate.sock")
	assert.NoError(err)
	ctx := newCtx(fasthttp.MethodGet, "http://example.com/status")
	assert.Error(NewClient(time.Second).Forward(ctx, target))
	assert.Equal(fasthttp.StatusBadGateway, ctx.Response.StatusCode())
}

func TestForwardTimeout(t *testing.T) {
	assert := assertion.New(t)
	sock, stop := serveUnix(t, func(ctx *fasthttp.RequestCtx) {
		time.Sleep(300 * time.Millisecond)
	})
	defer stop()
	target, err := types.ParseProxyTarget("http://unix:" + sock)
	assert.NoError(err)
	ctx := newCtx(fasthttp.MethodGet, "http://example.com/slow")
	err = NewClient(50 * time.Millisecond).Forward(ctx, target)
	assert.ErrorIs(err, ErrUpstreamTimeout)
	assert.Equal(fasthttp.StatusGatewayTimeout, ctx.Response.StatusCode())
}

func TestAppendForwardedFor(t *testing.T) {
	assert := assertion.New(t)
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	appendForwardedFor(req, net.ParseIP("10.0.0.1"))
	appendForwardedFor(req, net.ParseIP("10.0.0.2"))
	appendForwardedFor(req, net.IPv4zero)
	assert.Equal("10.0.0.1, 10.0.0.2", string(req.Header.Peek(fasthttp.HeaderXForwardedFor)))
}
