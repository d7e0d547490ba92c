package types

import (
	"github.com/pkg/errors"
	"net"
	"net/url"
	"strings"
)

const unixPrefix = "http://unix:"

// ProxyTarget is a parsed proxy action URL.
type ProxyTarget struct {
	Raw string
	// Network is "tcp" or "unix".
	Network string
	// Address is host:port for tcp and the socket path for unix.
	Address string
	TLS     bool
}

func ParseProxyTarget(raw string) (*ProxyTarget, error) {
	if strings.HasPrefix(raw, unixPrefix) {
		path := raw[len(unixPrefix):]
		if path == "" || path[0] != '/' {
			return nil, errors.Errorf("invalid proxy %q: socket path should be absolute", raw)
		}
		return &ProxyTarget{Raw: raw, Network: "unix", Address: path}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid proxy %q", raw)
	}
	t := &ProxyTarget{Raw: raw, Network: "tcp"}
	port := "80"
	switch u.Scheme {
	case "http":
	case "https":
		t.TLS = true
		port = "443"
	default:
		return nil, errors.Errorf("invalid proxy %q: scheme should be http or https", raw)
	}
	if u.Hostname() == "" {
		return nil, errors.Errorf("invalid proxy %q: missing host", raw)
	}
	if u.Path != "" && u.Path != "/" || u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.Errorf("invalid proxy %q: path, query and fragment are not allowed", raw)
	}
	if u.Port() != "" {
		port = u.Port()
	}
	t.Address = net.JoinHostPort(u.Hostname(), port)
	return t, nil
}

// Host is the value sent as the Host header upstream.
func (t *ProxyTarget) Host() string {
	if t.Network == "unix" {
		return "localhost"
	}
	return t.Address
}
