package types

// Config is the whole application server document.
type Config struct {
	Settings     *Settings               `json:"settings,omitempty"`
	Listeners    map[string]*Listener    `json:"listeners"`
	Routes       map[string]Route        `json:"routes,omitempty"`
	Applications map[string]*Application `json:"applications,omitempty"`
}

type Settings struct {
	HTTP *HTTPSettings `json:"http,omitempty"`
}

// HTTPSettings timeouts are in seconds.
type HTTPSettings struct {
	MaxBodySize       *Size  `json:"max_body_size,omitempty"`
	HeaderReadTimeout *int64 `json:"header_read_timeout,omitempty"`
	BodyReadTimeout   *int64 `json:"body_read_timeout,omitempty"`
	SendTimeout       *int64 `json:"send_timeout,omitempty"`
	IdleTimeout       *int64 `json:"idle_timeout,omitempty"`
}

type Listener struct {
	Pass PassTarget `json:"pass"`
}

// Route is an ordered list of steps, the first matching step wins.
type Route []*Step

type Step struct {
	Match  *Match  `json:"match,omitempty"`
	Action *Action `json:"action"`
}

type Match struct {
	URI Patterns `json:"uri,omitempty"`
}

// Action must carry exactly one of Pass, Proxy or Return.
type Action struct {
	Pass     PassTarget `json:"pass,omitempty"`
	Proxy    string     `json:"proxy,omitempty"`
	Return   int        `json:"return,omitempty"`
	Location string     `json:"location,omitempty"`
}

func (a *Action) Kinds() []string {
	var kinds []string
	if a.Pass != "" {
		kinds = append(kinds, "pass")
	}
	if a.Proxy != "" {
		kinds = append(kinds, "proxy")
	}
	if a.Return != 0 {
		kinds = append(kinds, "return")
	}
	return kinds
}

// HTTP returns the http settings, nil safe.
func (c *Config) HTTP() *HTTPSettings {
	if c.Settings == nil || c.Settings.HTTP == nil {
		return &HTTPSettings{}
	}
	return c.Settings.HTTP
}
