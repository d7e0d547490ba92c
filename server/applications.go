package server

import (
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"strings"
	"sync"
	"sync/atomic"
)

// Attachments maps application names to the upstream that serves them, for
// instance an ASGI worker pool started by a process supervisor.
type Attachments map[string]*types.ProxyTarget

// ParseAttachments reads "name=url" pairs.
func ParseAttachments(pairs []string) (Attachments, error) {
	a := make(Attachments, len(pairs))
	for _, pair := range pairs {
		i := strings.IndexByte(pair, '=')
		if i <= 0 || i == len(pair)-1 {
			return nil, errors.Errorf("invalid attachment %q, expected <application>=<url>", pair)
		}
		name, raw := pair[:i], pair[i+1:]
		if _, ok := a[name]; ok {
			return nil, errors.Errorf("application %s attached twice", name)
		}
		t, err := types.ParseProxyTarget(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "attachment of %s", name)
		}
		a[name] = t
	}
	return a, nil
}

type appCounters struct {
	requests uint64
	errors   uint64
}

// applications keeps per application counters, it survives reloads so the
// counters of applications that stay in the document keep growing.
type applications struct {
	mu       sync.RWMutex
	attached Attachments
	counters map[string]*appCounters
}

func newApplications(attached Attachments) *applications {
	if attached == nil {
		attached = Attachments{}
	}
	return &applications{attached: attached, counters: make(map[string]*appCounters)}
}

// sync drops counters of removed applications and creates the new ones.
func (a *applications) sync(conf *types.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name := range a.counters {
		if _, ok := conf.Applications[name]; !ok {
			delete(a.counters, name)
		}
	}
	for name := range conf.Applications {
		if _, ok := a.counters[name]; !ok {
			a.counters[name] = &appCounters{}
		}
	}
}

func (a *applications) target(name string) *types.ProxyTarget {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.attached[name]
}

func (a *applications) counter(name string) *appCounters {
	a.mu.RLock()
	c := a.counters[name]
	a.mu.RUnlock()
	if c != nil {
		return c
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c = a.counters[name]; c == nil {
		c = &appCounters{}
		a.counters[name] = c
	}
	return c
}

func (a *applications) record(name string, failed bool) {
	c := a.counter(name)
	atomic.AddUint64(&c.requests, 1)
	if failed {
		atomic.AddUint64(&c.errors, 1)
	}
}
