package config

import (
	"fmt"
	"github.com/revolution1/unitgate/types"
	"strings"
)

// Lint reports problems that do not stop the document from loading.
// It expects a document that passed Validate.
func Lint(conf *types.Config) []string {
	var warnings []string
	byTarget := make(map[types.PassTarget][]string)
	for _, key := range sortedKeys(conf.Listeners) {
		if l := conf.Listeners[key]; l != nil {
			byTarget[l.Pass] = append(byTarget[l.Pass], key)
		}
	}
	for _, key := range sortedKeys(conf.Listeners) {
		l := conf.Listeners[key]
		if l == nil {
			continue
		}
		if keys := byTarget[l.Pass]; len(keys) > 1 && keys[0] == key {
			warnings = append(warnings, fmt.Sprintf("listeners %s all pass to %s", strings.Join(keys, ", "), l.Pass))
		}
	}

	reachedRoutes, reachedApps := reachable(conf)
	for _, name := range sortedKeys(conf.Routes) {
		if !reachedRoutes[name] {
			warnings = append(warnings, fmt.Sprintf("routes/%s: not reachable from any listener", name))
		}
		route := conf.Routes[name]
		for i, step := range route {
			if step != nil && matchesAll(step) && i < len(route)-1 {
				warnings = append(warnings, fmt.Sprintf("routes/%s/%d: matches every request, steps after it are never used", name, i))
				break
			}
		}
	}
	for _, name := range sortedKeys(conf.Applications) {
		if !reachedApps[name] {
			warnings = append(warnings, fmt.Sprintf("applications/%s: not reachable from any listener", name))
		}
	}
	return warnings
}

func matchesAll(step *types.Step) bool {
	return step.Match == nil || len(step.Match.URI) == 0
}

func reachable(conf *types.Config) (routes, apps map[string]bool) {
	routes = make(map[string]bool)
	apps = make(map[string]bool)
	var follow func(target types.PassTarget)
	follow = func(target types.PassTarget) {
		kind, name, err := target.Parse()
		if err != nil {
			return
		}
		switch kind {
		case types.TargetApplication:
			apps[name] = true
		case types.TargetRoute:
			if routes[name] {
				return
			}
			routes[name] = true
			for _, step := range conf.Routes[name] {
				if step != nil && step.Action != nil && step.Action.Pass != "" {
					follow(step.Action.Pass)
				}
			}
		}
	}
	for _, l := range conf.Listeners {
		if l != nil {
			follow(l.Pass)
		}
	}
	return
}
