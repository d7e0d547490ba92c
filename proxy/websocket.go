package proxy

import (
	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"net"
	"net/http"
	"strings"
	"time"
)

// handshake headers are generated again by the dialer
var handshakeHeaders = map[string]bool{
	"Connection":               true,
	"Upgrade":                  true,
	"Host":                     true,
	"Sec-Websocket-Key":        true,
	"Sec-Websocket-Version":    true,
	"Sec-Websocket-Extensions": true,
	"Sec-Websocket-Protocol":   true,
}

func IsWebSocket(ctx *fasthttp.RequestCtx) bool {
	return websocket.FastHTTPIsWebSocketUpgrade(ctx)
}

// ForwardWebSocket dials the target with the handshake of ctx and, once the
// upstream accepted it, upgrades ctx and relays messages both ways. A refused
// upstream handshake answers with the upstream status, failures answer 502.
func (c *Client) ForwardWebSocket(ctx *fasthttp.RequestCtx, t *types.ProxyTarget) error {
	scheme := "ws"
	if t.TLS {
		scheme = "wss"
	}
	target := scheme + "://" + t.Host() + string(ctx.RequestURI())

	header := http.Header{}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := http.CanonicalHeaderKey(string(k))
		if !handshakeHeaders[key] {
			header.Add(key, string(v))
		}
	})
	if ip := ctx.RemoteIP(); ip != nil && !ip.IsUnspecified() {
		if prior := strings.TrimSpace(header.Get(fasthttp.HeaderXForwardedFor)); prior != "" {
			header.Set(fasthttp.HeaderXForwardedFor, prior+", "+ip.String())
		} else {
			header.Set(fasthttp.HeaderXForwardedFor, ip.String())
		}
	}

	var protocols []string
	for _, p := range strings.Split(string(ctx.Request.Header.Peek("Sec-WebSocket-Protocol")), ",") {
		if p = strings.TrimSpace(p); p != "" {
			protocols = append(protocols, p)
		}
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: c.Timeout,
		Subprotocols:     protocols,
		NetDial: func(network, addr string) (net.Conn, error) {
			return net.DialTimeout(t.Network, t.Address, c.Timeout)
		},
	}
	if t.TLS {
		dialer.TLSClientConfig = c.tlsConfig(t)
	}
	up, resp, err := dialer.Dial(target, header)
	if err != nil {
		code := fasthttp.StatusBadGateway
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			code = resp.StatusCode
		}
		ctx.Error(fasthttp.StatusMessage(code), code)
		log.WithError(err).WithField("proxy", t.Raw).Warn("error while dialing websocket upstream")
		return errors.Wrapf(err, "websocket proxy %s", t.Raw)
	}

	upgrader := websocket.FastHTTPUpgrader{
		CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
	}
	if p := up.Subprotocol(); p != "" {
		upgrader.Subprotocols = []string{p}
	}
	err = upgrader.Upgrade(ctx, func(down *websocket.Conn) {
		relay(down, up)
	})
	if err != nil {
		_ = up.Close()
		return errors.Wrap(err, "websocket upgrade")
	}
	return nil
}

// relay copies messages between the two connections until one side closes,
// the close frame is passed on to the other side.
func relay(down, up *websocket.Conn) {
	errc := make(chan error, 2)
	pass := func(dst, src *websocket.Conn) {
		for {
			mt, msg, err := src.ReadMessage()
			if err != nil {
				closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if e, ok := err.(*websocket.CloseError); ok && e.Code != websocket.CloseNoStatusReceived {
					closing = websocket.FormatCloseMessage(e.Code, e.Text)
				}
				_ = dst.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
				errc <- err
				return
			}
			if err := dst.WriteMessage(mt, msg); err != nil {
				errc <- err
				return
			}
		}
	}
	go pass(up, down)
	go pass(down, up)
	if err := <-errc; err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.WithError(err).Debug("websocket relay stopped")
	}
	_ = up.Close()
	_ = down.Close()
}
