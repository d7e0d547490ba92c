package types

import (
	"encoding/json"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"strconv"
)

// Size is a byte count, it accepts 1048576 as well as "1MiB".
type Size uint64

func (s *Size) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty size")
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		nBytes, err := humanize.ParseBytes(str)
		if err != nil {
			return errors.Wrapf(err, "invalid size %q", str)
		}
		*s = Size(nBytes)
		return nil
	}
	n, err := json.Number(b).Int64()
	if err != nil {
		return errors.Errorf("size should be an integer, got %s", b)
	}
	if n < 0 {
		return errors.Errorf("size should not be negative, got %d", n)
	}
	*s = Size(n)
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(s), 10)), nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}
