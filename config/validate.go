package config

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"go.uber.org/multierr"
	"sort"
	"strconv"
	"strings"
)

var runtimes = map[string]bool{
	"external":            true,
	"go":                  true,
	"java":                true,
	"nodejs":              true,
	"perl":                true,
	"php":                 true,
	"python":              true,
	"ruby":                true,
	"wasm":                true,
	"wasm-wasi-component": true,
}

type validator struct {
	conf *types.Config
	errs error
}

func (v *validator) errorf(path string, format string, args ...interface{}) {
	v.errs = multierr.Append(v.errs, errors.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

// Validate checks the whole document and reports every problem found, each
// message is prefixed with the path of the offending value.
func Validate(conf *types.Config) error {
	if conf == nil {
		return ErrEmptyDocument
	}
	v := &validator{conf: conf}
	v.settings()
	v.listeners()
	v.routes()
	v.applications()
	v.loops()
	return v.errs
}

func (v *validator) settings() {
	h := v.conf.HTTP()
	if h.MaxBodySize != nil && *h.MaxBodySize == 0 {
		v.errorf("settings/http/max_body_size", "should be a positive integer")
	}
	timeouts := []struct {
		name  string
		value *int64
	}{
		{"header_read_timeout", h.HeaderReadTimeout},
		{"body_read_timeout", h.BodyReadTimeout},
		{"send_timeout", h.SendTimeout},
		{"idle_timeout", h.IdleTimeout},
	}
	for _, t := range timeouts {
		if t.value != nil && *t.value <= 0 {
			v.errorf("settings/http/"+t.name, "should be a positive integer, got %d", *t.value)
		}
	}
}

func (v *validator) listeners() {
	ports := make(map[int][]types.ListenerAddress)
	for _, key := range sortedKeys(v.conf.Listeners) {
		path := "listeners/" + key
		addr, err := types.ParseListenerAddress(key)
		if err != nil {
			v.errorf(path, "%s", err)
		} else {
			ports[addr.Port] = append(ports[addr.Port], addr)
		}
		l := v.conf.Listeners[key]
		if l == nil {
			v.errorf(path, "listener should be an object")
			continue
		}
		v.pass(path+"/pass", l.Pass)
	}
	for port, addrs := range ports {
		if len(addrs) < 2 {
			continue
		}
		for _, a := range addrs {
			if a.Wildcard() {
				v.errorf("listeners/"+a.Key, "overlaps with another listener on port %d", port)
			}
		}
	}
}

func (v *validator) pass(path string, target types.PassTarget) {
	if target == "" {
		v.errorf(path, "pass target is required")
		return
	}
	kind, name, err := target.Parse()
	if err != nil {
		v.errorf(path, "%s", err)
		return
	}
	switch kind {
	case types.TargetApplication:
		if _, ok := v.conf.Applications[name]; !ok {
			v.errorf(path, "pass target %q not found", string(target))
		}
	case types.TargetRoute:
		if _, ok := v.conf.Routes[name]; !ok {
			v.errorf(path, "pass target %q not found", string(target))
		}
	}
}

func (v *validator) routes() {
	for _, name := range sortedKeys(v.conf.Routes) {
		path := "routes/" + name
		if strings.Contains(name, "/") {
			v.errorf(path, "route name should not contain '/'")
		}
		route := v.conf.Routes[name]
		if len(route) == 0 {
			v.errorf(path, "route should have at least one step")
		}
		for i, step := range route {
			v.step(path+"/"+strconv.Itoa(i), step)
		}
	}
}

func (v *validator) step(path string, step *types.Step) {
	if step == nil {
		v.errorf(path, "step should be an object")
		return
	}
	if step.Match != nil {
		for i, p := range step.Match.URI {
			if p == "" || p == "!" {
				v.errorf(path+"/match/uri/"+strconv.Itoa(i), "empty pattern")
			}
		}
	}
	a := step.Action
	if a == nil {
		v.errorf(path+"/action", "action is required")
		return
	}
	path += "/action"
	kinds := a.Kinds()
	switch len(kinds) {
	case 0:
		v.errorf(path, "action should have one of pass, proxy or return")
		return
	case 1:
	default:
		v.errorf(path, "action has conflicting options %s", strings.Join(kinds, ", "))
		return
	}
	switch {
	case a.Pass != "":
		v.pass(path+"/pass", a.Pass)
	case a.Proxy != "":
		if _, err := types.ParseProxyTarget(a.Proxy); err != nil {
			v.errorf(path+"/proxy", "%s", err)
		}
	case a.Return != 0:
		if a.Return < 100 || a.Return > 599 {
			v.errorf(path+"/return", "status should be within 100-599, got %d", a.Return)
		}
	}
	if a.Location != "" && a.Return == 0 {
		v.errorf(path+"/location", "location is only allowed with return")
	}
}

func (v *validator) applications() {
	for _, name := range sortedKeys(v.conf.Applications) {
		path := "applications/" + name
		if strings.Contains(name, "/") {
			v.errorf(path, "application name should not contain '/'")
		}
		app := v.conf.Applications[name]
		if app == nil {
			v.errorf(path, "application should be an object")
			continue
		}
		runtime, _ := app.Runtime()
		switch {
		case runtime == "":
			v.errorf(path+"/type", "type is required")
		case !runtimes[runtime]:
			v.errorf(path+"/type", "unknown application type %q", runtime)
		}
		if p := app.Processes; p != nil {
			if p.Max <= 0 {
				v.errorf(path+"/processes", "should be a positive integer, got %d", p.Max)
			}
			if p.Dynamic() {
				if p.Spare < 0 || p.Spare > p.Max {
					v.errorf(path+"/processes/spare", "should be within 0-%d, got %d", p.Max, p.Spare)
				}
				if p.IdleTimeout < 0 {
					v.errorf(path+"/processes/idle_timeout", "should not be negative, got %d", p.IdleTimeout)
				}
			}
		}
		if l := app.Limits; l != nil {
			if l.Requests != nil && *l.Requests <= 0 {
				v.errorf(path+"/limits/requests", "should be a positive integer, got %d", *l.Requests)
			}
			if l.Timeout != nil && *l.Timeout <= 0 {
				v.errorf(path+"/limits/timeout", "should be a positive integer, got %d", *l.Timeout)
			}
		}
		if runtime == "python" {
			if app.Module == "" {
				v.errorf(path+"/module", "module is required for python applications")
			}
			switch app.Protocol {
			case "", types.ProtocolASGI, types.ProtocolWSGI:
			default:
				v.errorf(path+"/protocol", "protocol should be asgi or wsgi, got %q", app.Protocol)
			}
		} else if app.Protocol != "" {
			v.errorf(path+"/protocol", "protocol is only supported by python applications")
		}
	}
}

// loops reports route chains that pass back into themselves.
func (v *validator) loops() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var stack []string
	var visit func(name string)
	visit = func(name string) {
		state[name] = visiting
		stack = append(stack, name)
		for _, next := range routeEdges(v.conf.Routes[name]) {
			if _, ok := v.conf.Routes[next]; !ok {
				continue
			}
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				var chain []string
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						for _, n := range stack[i:] {
							chain = append(chain, "routes/"+n)
						}
						break
					}
				}
				chain = append(chain, "routes/"+next)
				v.errorf("routes/"+next, "pass chain loops: %s", strings.Join(chain, " -> "))
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}
	for _, name := range sortedKeys(v.conf.Routes) {
		if state[name] == unvisited {
			visit(name)
		}
	}
}

func routeEdges(route types.Route) []string {
	var next []string
	for _, step := range route {
		if step == nil || step.Action == nil || step.Action.Pass == "" {
			continue
		}
		if kind, name, err := step.Action.Pass.Parse(); err == nil && kind == types.TargetRoute {
			next = append(next, name)
		}
	}
	return next
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch m := m.(type) {
	case map[string]*types.Listener:
		for k := range m {
			keys = append(keys, k)
		}
	case map[string]types.Route:
		for k := range m {
			keys = append(keys, k)
		}
	case map[string]*types.Application:
		for k := range m {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
