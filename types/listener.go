package types

import (
	"github.com/pkg/errors"
	"net"
	"strconv"
)

// ListenerAddress is a parsed listener key such as "*:8000" or "127.0.0.1:8181".
type ListenerAddress struct {
	Key  string
	Host string
	Port int
}

func ParseListenerAddress(key string) (ListenerAddress, error) {
	host, port, err := net.SplitHostPort(key)
	if err != nil {
		return ListenerAddress{}, errors.Wrapf(err, "invalid listener %q", key)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return ListenerAddress{}, errors.Errorf("invalid listener %q: port should be within 1-65535", key)
	}
	if host != "*" && host != "" && net.ParseIP(host) == nil {
		return ListenerAddress{}, errors.Errorf("invalid listener %q: host should be * or an IP address", key)
	}
	if host == "*" {
		host = ""
	}
	return ListenerAddress{Key: key, Host: host, Port: n}, nil
}

// Wildcard reports whether the listener binds every interface, "*",
// "0.0.0.0" and "[::]" all do.
func (a ListenerAddress) Wildcard() bool {
	if a.Host == "" {
		return true
	}
	ip := net.ParseIP(a.Host)
	return ip != nil && ip.IsUnspecified()
}

// Bind is the address handed to net.Listen.
func (a ListenerAddress) Bind() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a ListenerAddress) Listen() (net.Listener, error) {
	return net.Listen("tcp", a.Bind())
}
