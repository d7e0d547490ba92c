package types

import (
	"github.com/pkg/errors"
	"strings"
)

type TargetKind string

const (
	TargetApplication TargetKind = "applications"
	TargetRoute       TargetKind = "routes"
)

// PassTarget references another section, "applications/<name>" or "routes/<name>".
type PassTarget string

func ApplicationTarget(name string) PassTarget {
	return PassTarget(string(TargetApplication) + "/" + name)
}

func RouteTarget(name string) PassTarget {
	return PassTarget(string(TargetRoute) + "/" + name)
}

func (p PassTarget) Parse() (TargetKind, string, error) {
	i := strings.IndexByte(string(p), '/')
	if i < 0 {
		return "", "", errors.Errorf("pass target %q should be applications/<name> or routes/<name>", string(p))
	}
	kind, name := TargetKind(p[:i]), string(p[i+1:])
	if kind != TargetApplication && kind != TargetRoute {
		return "", "", errors.Errorf("pass target %q has unknown section %q", string(p), string(kind))
	}
	if name == "" || strings.Contains(name, "/") {
		return "", "", errors.Errorf("pass target %q has an invalid name", string(p))
	}
	return kind, name, nil
}
