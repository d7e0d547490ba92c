package config

import (
	"bytes"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"io/ioutil"
	"path/filepath"
	"sigs.k8s.io/yaml"
	"strings"
)

const (
	DefaultMaxBodySize       = 8 * 1024 * 1024
	DefaultHeaderReadTimeout = 30
	DefaultBodyReadTimeout   = 30
	DefaultSendTimeout       = 30
	DefaultIdleTimeout       = 180
	DefaultCallable          = "application"
)

var (
	ErrEmptyDocument = errors.New("empty configuration document")
	ErrNotObject     = errors.New("configuration document should be an object")
)

// documents are decoded as JSON, unknown fields are rejected
var strictJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// Load reads a .json, .yaml or .yml document and parses it.
func Load(path string) (*types.Config, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if content, err = yaml.YAMLToJSONStrict(content); err != nil {
			return nil, errors.Wrapf(err, "invalid yaml in %s", path)
		}
	}
	conf, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s", path)
	}
	return conf, nil
}

// Parse decodes a document, YAML is accepted when it does not start with '{'.
// Defaults are applied, Validate is left to the caller.
func Parse(data []byte) (*types.Config, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if data[0] != '{' {
		j, err := yaml.YAMLToJSONStrict(data)
		if err != nil {
			return nil, errors.Wrap(err, "invalid yaml document")
		}
		data = j
	}
	if data[0] != '{' {
		return nil, ErrNotObject
	}
	if err := checkDuplicateKeys(data); err != nil {
		return nil, err
	}
	conf := new(types.Config)
	if err := strictJSON.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrap(err, "invalid document")
	}
	ApplyDefaults(conf)
	return conf, nil
}

func ApplyDefaults(conf *types.Config) {
	if conf.Settings == nil {
		conf.Settings = &types.Settings{}
	}
	if conf.Settings.HTTP == nil {
		conf.Settings.HTTP = &types.HTTPSettings{}
	}
	h := conf.Settings.HTTP
	if h.MaxBodySize == nil {
		s := types.Size(DefaultMaxBodySize)
		h.MaxBodySize = &s
	}
	h.HeaderReadTimeout = defaultInt(h.HeaderReadTimeout, DefaultHeaderReadTimeout)
	h.BodyReadTimeout = defaultInt(h.BodyReadTimeout, DefaultBodyReadTimeout)
	h.SendTimeout = defaultInt(h.SendTimeout, DefaultSendTimeout)
	h.IdleTimeout = defaultInt(h.IdleTimeout, DefaultIdleTimeout)
	if conf.Listeners == nil {
		conf.Listeners = map[string]*types.Listener{}
	}
	for _, app := range conf.Applications {
		if app == nil {
			continue
		}
		if app.Processes == nil {
			app.Processes = types.StaticProcesses(1)
		}
		if name, _ := app.Runtime(); name == "python" && app.Callable == "" {
			app.Callable = DefaultCallable
		}
	}
}

func defaultInt(v *int64, def int64) *int64 {
	if v != nil {
		return v
	}
	return &def
}
