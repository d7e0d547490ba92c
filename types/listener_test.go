package types

import (
	assertion "github.com/stretchr/testify/assert"
	"testing"
)

func TestParseListenerAddress(t *testing.T) {
	assert := assertion.New(t)
	cases := []struct {
		key  string
		host string
		port int
		bind string
	}{
		{"*:8000", "", 8000, ":8000"},
		{"127.0.0.1:8181", "127.0.0.1", 8181, "127.0.0.1:8181"},
		{"[::1]:8001", "::1", 8001, "[::1]:8001"},
	}
	for _, c := range cases {
		a, err := ParseListenerAddress(c.key)
		assert.NoError(err, c.key)
		assert.Equal(c.key, a.Key)
		assert.Equal(c.host, a.Host)
		assert.Equal(c.port, a.Port)
		assert.Equal(c.bind, a.Bind())
	}

	for key, wildcard := range map[string]bool{
		"*:8000":         true,
		"0.0.0.0:8000":   true,
		"[::]:8000":      true,
		"127.0.0.1:8000": false,
		"[::1]:8000":     false,
	} {
		a, err := ParseListenerAddress(key)
		assert.NoError(err, key)
		assert.Equal(wildcard, a.Wildcard(), key)
	}

	for _, bad := range []string{"8000", "*:0", "*:65536", "*:http", "example.com:80", "*:"} {
		_, err := ParseListenerAddress(bad)
		assert.Error(err, bad)
	}
}

func TestPassTarget(t *testing.T) {
	assert := assertion.New(t)
	kind, name, err := PassTarget("applications/app").Parse()
	assert.NoError(err)
	assert.Equal(TargetApplication, kind)
	assert.Equal("app", name)

	kind, name, err = RouteTarget("main").Parse()
	assert.NoError(err)
	assert.Equal(TargetRoute, kind)
	assert.Equal("main", name)
	assert.Equal(PassTarget("applications/x"), ApplicationTarget("x"))

	for _, bad := range []string{"app", "upstreams/a", "routes/", "routes/a/b", ""} {
		_, _, err := PassTarget(bad).Parse()
		assert.Error(err, bad)
	}
}

func TestParseProxyTarget(t *testing.T) {
	assert := assertion.New(t)

	p, err := ParseProxyTarget("http://unix:/var/run/control.unit.sock")
	assert.NoError(err)
	assert.Equal("unix", p.Network)
	assert.Equal("/var/run/control.unit.sock", p.Address)
	assert.Equal("localhost", p.Host())

	p, err = ParseProxyTarget("http://127.0.0.1:8080")
	assert.NoError(err)
	assert.Equal("tcp", p.Network)
	assert.Equal("127.0.0.1:8080", p.Address)
	assert.False(p.TLS)

	p, err = ParseProxyTarget("https://status.internal")
	assert.NoError(err)
	assert.Equal("status.internal:443", p.Address)
	assert.True(p.TLS)

	for _, bad := range []string{"ftp://a", "http://", "http://unix:relative.sock", "http://a/b", "http://a?x=1", "::"} {
		_, err := ParseProxyTarget(bad)
		assert.Error(err, bad)
	}
}
