package proxy

import (
	"crypto/tls"
	"github.com/certifi/gocertifi"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"github.com/savsgio/gotils/nocopy"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxConns = 512
)

var ErrUpstreamTimeout = errors.New("upstream request timeout")

// hop-by-hop headers are not forwarded in either direction
var hopHeaders = []string{
	fasthttp.HeaderConnection,
	"Keep-Alive",
	"Proxy-Connection",
	fasthttp.HeaderTE,
	fasthttp.HeaderTrailer,
	fasthttp.HeaderTransferEncoding,
	fasthttp.HeaderUpgrade,
}

// Client forwards requests to proxy targets, one fasthttp.HostClient is kept
// per target. It is safe for concurrent use.
type Client struct {
	nocopy.NoCopy

	Timeout  time.Duration
	MaxConns int

	mu      sync.Mutex
	clients map[string]*fasthttp.HostClient
	tlsOnce sync.Once
	tlsConf *tls.Config
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Timeout: timeout, MaxConns: DefaultMaxConns, clients: make(map[string]*fasthttp.HostClient)}
}

func (c *Client) hostClient(t *types.ProxyTarget) *fasthttp.HostClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[t.Raw]; ok {
		return hc
	}
	hc := &fasthttp.HostClient{
		Addr:         t.Address,
		Name:         "unitgate",
		MaxConns:     c.MaxConns,
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
	}
	if t.Network == "unix" {
		path := t.Address
		hc.Dial = func(string) (net.Conn, error) {
			return net.Dial("unix", path)
		}
	}
	if t.TLS {
		hc.IsTLS = true
		hc.TLSConfig = c.tlsConfig(t)
	}
	c.clients[t.Raw] = hc
	return hc
}

// tlsConfig trusts the certifi bundle, it falls back to the system pool when
// the bundle cannot be loaded.
func (c *Client) tlsConfig(t *types.ProxyTarget) *tls.Config {
	c.tlsOnce.Do(func() {
		c.tlsConf = &tls.Config{}
		certPool, err := gocertifi.CACerts()
		if err != nil {
			log.WithError(err).Warn("unable to load certifi bundle, using system roots")
			return
		}
		c.tlsConf.RootCAs = certPool
	})
	conf := c.tlsConf.Clone()
	if host, _, err := net.SplitHostPort(t.Address); err == nil {
		conf.ServerName = host
	}
	return conf
}

// Forward sends the request of ctx to the target and writes the upstream
// response into ctx. Upstream failures answer 502, timeouts 504.
func (c *Client) Forward(ctx *fasthttp.RequestCtx, t *types.ProxyTarget) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	ctx.Request.CopyTo(req)
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	appendForwardedFor(req, ctx.RemoteIP())
	if t.TLS {
		req.URI().SetScheme("https")
	}

	err := c.hostClient(t).DoTimeout(req, resp, c.Timeout)
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			err = ErrUpstreamTimeout
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusGatewayTimeout), fasthttp.StatusGatewayTimeout)
		} else {
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusBadGateway), fasthttp.StatusBadGateway)
		}
		log.WithError(err).WithField("proxy", t.Raw).Warn("error while requesting from upstream")
		return errors.Wrapf(err, "proxy %s", t.Raw)
	}
	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	resp.CopyTo(&ctx.Response)
	if ctx.Request.Header.ConnectionClose() {
		ctx.Response.SetConnectionClose()
	}
	return nil
}

func appendForwardedFor(req *fasthttp.Request, ip net.IP) {
	if ip == nil || ip.IsUnspecified() {
		return
	}
	prior := strings.TrimSpace(string(req.Header.Peek(fasthttp.HeaderXForwardedFor)))
	if prior != "" {
		req.Header.Set(fasthttp.HeaderXForwardedFor, prior+", "+ip.String())
		return
	}
	req.Header.Set(fasthttp.HeaderXForwardedFor, ip.String())
}
