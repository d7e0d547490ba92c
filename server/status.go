package server

import (
	"sort"
	"sync/atomic"
	"time"
)

type ListenerStatus struct {
	Pass     string `json:"pass"`
	Address  string `json:"address,omitempty"`
	Requests uint64 `json:"requests"`
}

type ProcessesStatus struct {
	Max         int64 `json:"max"`
	Spare       int64 `json:"spare"`
	IdleTimeout int64 `json:"idle_timeout,omitempty"`
}

type ApplicationStatus struct {
	Type      string          `json:"type"`
	Protocol  string          `json:"protocol,omitempty"`
	Processes ProcessesStatus `json:"processes"`
	// RequestLimit is the declared per worker request limit, 0 means unlimited.
	RequestLimit int64  `json:"request_limit"`
	Attached     string `json:"attached,omitempty"`
	Requests     uint64 `json:"requests"`
	Errors       uint64 `json:"errors"`
}

type Status struct {
	Generation   uint64                       `json:"generation"`
	LoadedAt     time.Time                    `json:"loaded_at"`
	Uptime       string                       `json:"uptime"`
	Listeners    map[string]ListenerStatus    `json:"listeners"`
	Applications map[string]ApplicationStatus `json:"applications"`
	Routes       []string                     `json:"routes"`
}

// Status is a snapshot of the running document and its counters.
func (s *Server) Status() *Status {
	st := s.state()
	out := &Status{
		Generation:   st.generation,
		LoadedAt:     st.loaded,
		Listeners:    make(map[string]ListenerStatus, len(st.conf.Listeners)),
		Applications: make(map[string]ApplicationStatus, len(st.conf.Applications)),
		Routes:       make([]string, 0, len(st.conf.Routes)),
	}
	out.Uptime = time.Since(s.started).Truncate(time.Second).String()
	for key, l := range st.conf.Listeners {
		ls := ListenerStatus{Pass: string(l.Pass)}
		if addr := s.registry.Addr(key); addr != nil {
			ls.Address = addr.String()
		}
		if n, ok := s.hits[key]; ok {
			ls.Requests = atomic.LoadUint64(n)
		}
		out.Listeners[key] = ls
	}
	for name, app := range st.conf.Applications {
		as := ApplicationStatus{
			Type:         app.Type,
			Protocol:     app.Protocol,
			RequestLimit: app.MaxRequests(),
		}
		if p := app.Processes; p != nil {
			as.Processes = ProcessesStatus{Max: p.Max, Spare: p.Spare, IdleTimeout: p.IdleTimeout}
		}
		if t := s.apps.target(name); t != nil {
			as.Attached = t.Raw
		}
		c := s.apps.counter(name)
		as.Requests = atomic.LoadUint64(&c.requests)
		as.Errors = atomic.LoadUint64(&c.errors)
		out.Applications[name] = as
	}
	for name := range st.conf.Routes {
		out.Routes = append(out.Routes, name)
	}
	sort.Strings(out.Routes)
	return out
}
