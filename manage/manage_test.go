package manage

import (
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/server"
	"github.com/revolution1/unitgate/state"
	"github.com/revolution1/unitgate/types"
	assertion "github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"testing"
)

type fakeGateway struct {
	conf      *types.Config
	reloaded  *types.Config
	reloadErr error
}

func (g *fakeGateway) Config() *types.Config { return g.conf }

func (g *fakeGateway) Status() *server.Status {
	return &server.Status{Generation: 3, Routes: []string{"main"}}
}

func (g *fakeGateway) Reload(conf *types.Config) error {
	if g.reloadErr != nil {
		return g.reloadErr
	}
	g.reloaded = conf
	return nil
}

type fakeHistory []state.Revision

func (h fakeHistory) History(limit int) ([]state.Revision, error) {
	if limit > 0 && limit < len(h) {
		return h[:limit], nil
	}
	return h, nil
}

func newGateway() *fakeGateway {
	return &fakeGateway{conf: config.Example()}
}

func do(h fasthttp.RequestHandler, method, uri, body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.SetBodyString(body)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 50000}, nil)
	h(ctx)
	return ctx
}

func TestGetConfig(t *testing.T) {
	assert := assertion.New(t)
	h := NewManage(newGateway(), nil).Handler()

	ctx := do(h, "GET", "/config", "")
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal("application/json", string(ctx.Response.Header.ContentType()))
	assert.Contains(string(ctx.Response.Body()), `"listeners"`)

	ctx = do(h, "GET", "/config/listeners/*:8000", "")
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(`{"pass": "routes/main"}`, string(ctx.Response.Body()))

	ctx = do(h, "GET", "/config/applications/missing", "")
	assert.Equal(fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Contains(string(ctx.Response.Body()), "path not found")
}

func TestPutConfig(t *testing.T) {
	assert := assertion.New(t)
	gw := newGateway()
	h := NewManage(gw, nil).Handler()

	ctx := do(h, "PUT", "/config", config.ExampleDocument)
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.NotNil(gw.reloaded)

	ctx = do(h, "PUT", "/config", `{"listeners": {"*:8000": {"pass": "routes/main"}}, "bogus": 1}`)
	assert.Equal(fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	gw.reloadErr = server.ErrRestartRequired
	ctx = do(h, "PUT", "/config", config.ExampleDocument)
	assert.Equal(fasthttp.StatusConflict, ctx.Response.StatusCode())
}

func TestStatusAndIndex(t *testing.T) {
	assert := assertion.New(t)
	h := NewManage(newGateway(), nil).Handler()

	ctx := do(h, "GET", "/status", "")
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(string(ctx.Response.Body()), `"generation": 3`)

	ctx = do(h, "GET", "/", "")
	assert.Equal("UNITGATE CONTROL API", string(ctx.Response.Body()))

	ctx = do(h, "GET", "/metrics", "")
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(string(ctx.Response.Body()), "unitgate_")
}

func TestListen(t *testing.T) {
	assert := assertion.New(t)
	dir, err := ioutil.TempDir("", "unitgate-control")
	assert.NoError(err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "control.sock")
	assert.NoError(ioutil.WriteFile(sock, nil, 0600))

	ln, err := Listen("unix:" + sock)
	assert.NoError(err)
	assert.Equal("unix", ln.Addr().Network())
	assert.NoError(ln.Close())

	_, err = Listen("unix:relative.sock")
	assert.Error(err)
}

func TestHistory(t *testing.T) {
	assert := assertion.New(t)
	ctx := do(NewManage(newGateway(), nil).Handler(), "GET", "/history", "")
	assert.Equal(fasthttp.StatusNotFound, ctx.Response.StatusCode())

	h := fakeHistory{{Generation: 2, Digest: "b"}, {Generation: 1, Digest: "a"}}
	ctx = do(NewManage(newGateway(), h).Handler(), "GET", "/history?limit=1", "")
	assert.Equal(fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.Contains(body, `"generation": 2`)
	assert.NotContains(body, `"generation": 1`)
}
