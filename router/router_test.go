package router

import (
	"github.com/revolution1/unitgate/caching"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/types"
	assertion "github.com/stretchr/testify/assert"
	"testing"
)

func exampleTable(t *testing.T, cache caching.Cache) *Table {
	table, err := New(config.Example(), cache)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestResolveExample(t *testing.T) {
	assert := assertion.New(t)
	table := exampleTable(t, nil)
	defer table.Close()

	for _, uri := range []string{"/", "/anything", "/docs/openapi.json"} {
		d, err := table.Resolve("*:8000", uri)
		assert.NoError(err, uri)
		assert.Equal(KindApplication, d.Kind)
		assert.Equal("app", d.Application)
		assert.Equal("main", d.Route)
	}

	d, err := table.Resolve("*:8001", "/metrics")
	assert.NoError(err)
	assert.Equal(KindApplication, d.Kind)
	assert.Equal("metrics", d.Application)

	_, err = table.Resolve("*:8001", "/")
	assert.ErrorIs(err, ErrNoMatch)

	d, err = table.Resolve("*:8181", "/status")
	assert.NoError(err)
	assert.Equal(KindProxy, d.Kind)
	assert.Equal("unix", d.Proxy.Network)
	assert.Equal("/var/run/control.unit.sock", d.Proxy.Address)
	assert.Equal("proxy http://unix:/var/run/control.unit.sock (routes/status/0)", d.String())

	_, err = table.Resolve("*:9999", "/")
	assert.ErrorIs(err, ErrUnknownListener)

	assert.ElementsMatch([]string{"*:8000", "*:8001", "*:8181"}, table.Listeners())
}

func TestResolveChain(t *testing.T) {
	assert := assertion.New(t)
	conf, err := config.Parse([]byte(`{
		"listeners": {
			"*:80": {"pass": "routes/edge"},
			"*:81": {"pass": "applications/app"}
		},
		"routes": {
			"edge": [
				{"match": {"uri": ["/old/*"]}, "action": {"return": 301, "location": "/new/"}},
				{"match": {"uri": ["/api/*", "!/api/internal/*"]}, "action": {"pass": "routes/api"}},
				{"match": {"uri": "/api/internal/*"}, "action": {"return": 403}},
				{"action": {"proxy": "http://127.0.0.1:9000"}}
			],
			"api": [
				{"match": {"uri": "/api/v1/*"}, "action": {"pass": "applications/app"}},
				{"action": {"return": 404}}
			]
		},
		"applications": {"app": {"type": "python", "module": "main"}}
	}`))
	assert.NoError(err)
	assert.NoError(config.Validate(conf))
	table, err := New(conf, nil)
	assert.NoError(err)

	cases := []struct {
		listener, uri string
		want          string
	}{
		{"*:80", "/old/page", "return 301 /new/ (routes/edge/0)"},
		{"*:80", "/api/v1/users", "pass applications/app (routes/api/0)"},
		{"*:80", "/api/v2/users", "return 404 (routes/api/1)"},
		{"*:80", "/api/internal/debug", "return 403 (routes/edge/2)"},
		{"*:80", "/index.html", "proxy http://127.0.0.1:9000 (routes/edge/3)"},
		{"*:81", "/whatever", "pass applications/app"},
	}
	for _, c := range cases {
		d, err := table.Resolve(c.listener, c.uri)
		if assert.NoError(err, c.uri) {
			assert.Equal(c.want, d.String(), c.uri)
		}
	}
}

func TestResolveLoopGuard(t *testing.T) {
	assert := assertion.New(t)
	// Validate rejects this document, the table still has to terminate.
	conf := &types.Config{
		Listeners: map[string]*types.Listener{"*:80": {Pass: types.RouteTarget("a")}},
		Routes: map[string]types.Route{
			"a": {{Action: &types.Action{Pass: types.RouteTarget("b")}}},
			"b": {{Action: &types.Action{Pass: types.RouteTarget("a")}}},
		},
	}
	table, err := New(conf, nil)
	assert.NoError(err)
	_, err = table.Resolve("*:80", "/")
	assert.ErrorIs(err, ErrRouteLoop)
}

func TestNewRejectsBrokenSteps(t *testing.T) {
	assert := assertion.New(t)
	_, err := New(&types.Config{
		Routes: map[string]types.Route{"a": {{Action: &types.Action{Proxy: "ftp://x"}}}},
	}, nil)
	assert.Error(err)
	_, err = New(&types.Config{
		Listeners: map[string]*types.Listener{"*:80": {Pass: "nowhere"}},
	}, nil)
	assert.Error(err)
}

func TestResolveCached(t *testing.T) {
	assert := assertion.New(t)
	cache, err := caching.NewRisCache(1 << 16)
	assert.NoError(err)
	table := exampleTable(t, cache)
	defer table.Close()

	first, err := table.Resolve("*:8000", "/cached")
	assert.NoError(err)
	cache.Wait()
	second, err := table.Resolve("*:8000", "/cached")
	assert.NoError(err)
	assert.Same(first, second)

	table.Purge()
	third, err := table.Resolve("*:8000", "/cached")
	assert.NoError(err)
	assert.NotSame(first, third)
	assert.Equal(first, third)
}
