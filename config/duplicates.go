package config

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"io"
	"strconv"
)

// checkDuplicateKeys walks the raw document, the decoder would silently keep
// the last of two equal names.
func checkDuplicateKeys(data []byte) error {
	iter := jsoniter.ConfigDefault.BorrowIterator(data)
	defer jsoniter.ConfigDefault.ReturnIterator(iter)
	var errs error
	walkKeys(iter, "", &errs)
	if iter.Error != nil && iter.Error != io.EOF {
		return errors.Wrap(iter.Error, "invalid document")
	}
	return errs
}

func walkKeys(iter *jsoniter.Iterator, path string, errs *error) {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		seen := make(map[string]struct{})
		iter.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
			if _, ok := seen[key]; ok {
				*errs = multierr.Append(*errs, errors.Errorf("%s: duplicate name %q", displayPath(path), key))
			}
			seen[key] = struct{}{}
			walkKeys(it, joinPath(path, key), errs)
			return true
		})
	case jsoniter.ArrayValue:
		i := 0
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			walkKeys(it, joinPath(path, strconv.Itoa(i)), errs)
			i++
			return true
		})
	default:
		iter.Skip()
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
