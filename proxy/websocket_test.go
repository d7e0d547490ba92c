package proxy

import (
	"github.com/fasthttp/websocket"
	"github.com/revolution1/unitgate/types"
	assertion "github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"net"
	"testing"
	"time"
)

func serveGateway(t *testing.T, c *Client, target *types.ProxyTarget) (string, func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		if !IsWebSocket(ctx) {
			ctx.Error("websocket only", fasthttp.StatusBadRequest)
			return
		}
		_ = c.ForwardWebSocket(ctx, target)
	}}
	go func() { _ = s.Serve(ln) }()
	return ln.Addr().String(), func() { _ = s.Shutdown() }
}

func TestForwardWebSocket(t *testing.T) {
	assert := assertion.New(t)
	upgrader := websocket.FastHTTPUpgrader{Subprotocols: []string{"chat"}}
	sock, stop := serveUnix(t, func(ctx *fasthttp.RequestCtx) {
		forwarded := string(ctx.Request.Header.Peek(fasthttp.HeaderXForwardedFor))
		_ = upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			defer conn.Close()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(forwarded))
			for {
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if err := conn.WriteMessage(mt, msg); err != nil {
					return
				}
			}
		})
	})
	defer stop()
	target, err := types.ParseProxyTarget("http://unix:" + sock)
	assert.NoError(err)
	addr, stopGateway := serveGateway(t, NewClient(time.Second), target)
	defer stopGateway()

	dialer := &websocket.Dialer{Subprotocols: []string{"chat"}, HandshakeTimeout: time.Second}
	conn, resp, err := dialer.Dial("ws://"+addr+"/ws/echo", nil)
	if !assert.NoError(err) {
		return
	}
	defer conn.Close()
	assert.Equal(101, resp.StatusCode)
	assert.Equal("chat", conn.Subprotocol())

	_, msg, err := conn.ReadMessage()
	assert.NoError(err)
	assert.Equal("127.0.0.1", string(msg))

	assert.NoError(conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	mt, msg, err := conn.ReadMessage()
	assert.NoError(err)
	assert.Equal(websocket.TextMessage, mt)
	assert.Equal("hello", string(msg))

	assert.NoError(conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	mt, msg, err = conn.ReadMessage()
	assert.NoError(err)
	assert.Equal(websocket.BinaryMessage, mt)
	assert.Equal([]byte{1, 2, 3}, msg)
}

func TestForwardWebSocketRefused(t *testing.T) {
	assert := assertion.New(t)
	sock, stop := serveUnix(t, func(ctx *fasthttp.RequestCtx) {
		ctx.Error("forbidden", fasthttp.StatusForbidden)
	})
	defer stop()
	target, err := types.ParseProxyTarget("http://unix:" + sock)
	assert.NoError(err)
	addr, stopGateway := serveGateway(t, NewClient(time.Second), target)
	defer stopGateway()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	assert.ErrorIs(err, websocket.ErrBadHandshake)
	if assert.NotNil(resp) {
		assert.Equal(fasthttp.StatusForbidden, resp.StatusCode)
	}
}
