package utils

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"net"
	"net/url"
	"strings"
	"syscall"
)

const unixPrefix = "unix:"

// ControlAddress splits a control API address into a network and an address.
// "unix:/run/unitgate.sock" is a unix socket, "127.0.0.1:8080" and
// "http://127.0.0.1:8080" are tcp.
func ControlAddress(u string) (network, address string, err error) {
	if strings.HasPrefix(u, unixPrefix) {
		path := u[len(unixPrefix):]
		if !strings.HasPrefix(path, "/") {
			return "", "", errors.Errorf("invalid control address %q: socket path should be absolute", u)
		}
		return "unix", path, nil
	}
	if host := GetHostFromUrl(u); host != "" {
		if _, _, err := net.SplitHostPort(host); err != nil {
			return "", "", errors.Wrapf(err, "invalid control address %q", u)
		}
		return "tcp", host, nil
	}
	return "", "", errors.Errorf("invalid control address %q", u)
}

func GetHostFromUrl(u string) string {
	if strings.Index(u, "://") == -1 {
		u = "http://" + u
	}
	p, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return p.Host
}

func CheckFdLimit() {
	const min = 8192
	// Warn if ulimit is too low for production sites
	rlimit := &syscall.Rlimit{}
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, rlimit)
	if err == nil && rlimit.Cur < min {
		log.Warnf("WARNING: File descriptor limit %d is too low for production servers. "+
			"At least %d is recommended. Fix with `ulimit -n %d`.\n", rlimit.Cur, min, min)
	}
}

func StrSliceContainsI(slice []string, item string) bool {
	for _, i := range slice {
		if strings.EqualFold(i, item) {
			return true
		}
	}
	return false
}
