package types

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Patterns is written either as a single string or as an array of strings.
type Patterns []string

func (p *Patterns) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := jsoniter.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Patterns{s}
		return nil
	}
	var list []string
	if err := jsoniter.Unmarshal(b, &list); err != nil {
		return errors.Errorf("patterns should be a string or an array of strings, got %s", b)
	}
	*p = list
	return nil
}
