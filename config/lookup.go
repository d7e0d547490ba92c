package config

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"sigs.k8s.io/yaml"
	"strconv"
	"strings"
)

var ErrPathNotFound = errors.New("path not found")

var prettyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Lookup returns the value at a slash separated path of the document,
// "" or "/" is the whole document. Array steps are addressed by index.
func Lookup(conf *types.Config, path string) (interface{}, error) {
	raw, err := prettyJSON.Marshal(conf)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode config")
	}
	var node interface{}
	if err := prettyJSON.Unmarshal(raw, &node); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return node, nil
	}
	for _, seg := range strings.Split(path, "/") {
		switch n := node.(type) {
		case map[string]interface{}:
			v, ok := n[seg]
			if !ok {
				return nil, errors.Wrapf(ErrPathNotFound, "%s", path)
			}
			node = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n) {
				return nil, errors.Wrapf(ErrPathNotFound, "%s", path)
			}
			node = n[i]
		default:
			return nil, errors.Wrapf(ErrPathNotFound, "%s", path)
		}
	}
	return node, nil
}

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Marshal renders v as indented JSON or as YAML.
func Marshal(v interface{}, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		out, err := prettyJSON.MarshalIndent(v, "", "    ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML, "yml":
		return yaml.Marshal(v)
	default:
		return nil, errors.Errorf("unknown output format %q", format)
	}
}
