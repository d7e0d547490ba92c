package caching

import (
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

type RisCache struct {
	*ristretto.Cache
}

func NewRisCache(maxCost int64) (*RisCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create cache")
	}
	return &RisCache{c}, nil
}

func (c *RisCache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *RisCache) Set(key string, val interface{}, cost int64) bool {
	return c.Cache.Set(key, val, cost)
}

// Wait blocks until buffered sets are applied, tests use it to observe hits.
func (c *RisCache) Wait() {
	c.Cache.Wait()
}
