package types

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"strings"
)

var strictJSON = jsoniter.Config{DisallowUnknownFields: true}.Froze()

const (
	ProtocolASGI = "asgi"
	ProtocolWSGI = "wsgi"
)

// Application is a process pool definition consumed by the language runtime.
type Application struct {
	Type             string     `json:"type"`
	Processes        *Processes `json:"processes,omitempty"`
	WorkingDirectory string     `json:"working_directory,omitempty"`
	Path             string     `json:"path,omitempty"`
	Module           string     `json:"module,omitempty"`
	Callable         string     `json:"callable,omitempty"`
	Protocol         string     `json:"protocol,omitempty"`
	User             string     `json:"user,omitempty"`
	Group            string     `json:"group,omitempty"`
	Limits           *Limits    `json:"limits,omitempty"`
}

type Limits struct {
	// Requests a worker serves before it is recycled.
	Requests *int64 `json:"requests,omitempty"`
	// Timeout in seconds for a single request.
	Timeout *int64 `json:"timeout,omitempty"`
}

// Runtime splits Type into the runtime name and its optional version,
// "python 3.11" gives ("python", "3.11").
func (a *Application) Runtime() (name, version string) {
	fields := strings.Fields(a.Type)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// MaxRequests is zero when the pool never recycles workers.
func (a *Application) MaxRequests() int64 {
	if a.Limits == nil || a.Limits.Requests == nil {
		return 0
	}
	return *a.Limits.Requests
}

// Processes is either a static count or a dynamic pool:
//   "processes": 4
//   "processes": {"max": 8, "spare": 2, "idle_timeout": 20}
type Processes struct {
	Max         int64 `json:"max"`
	Spare       int64 `json:"spare,omitempty"`
	IdleTimeout int64 `json:"idle_timeout,omitempty"`

	dynamic bool
}

func StaticProcesses(n int64) *Processes {
	return &Processes{Max: n, Spare: n}
}

func (p *Processes) Dynamic() bool {
	return p.dynamic
}

func (p *Processes) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		type plain Processes
		var v plain
		if err := strictJSON.Unmarshal(b, &v); err != nil {
			return errors.Wrap(err, "invalid processes object")
		}
		*p = Processes(v)
		p.dynamic = true
		return nil
	}
	var n int64
	if err := jsoniter.Unmarshal(b, &n); err != nil {
		return errors.Errorf("processes should be an integer or an object, got %s", b)
	}
	*p = Processes{Max: n, Spare: n}
	return nil
}

func (p Processes) MarshalJSON() ([]byte, error) {
	if !p.dynamic {
		return jsoniter.Marshal(p.Max)
	}
	type plain Processes
	return jsoniter.Marshal(plain(p))
}
