package caching

import (
	assertion "github.com/stretchr/testify/assert"
	"testing"
)

func TestRisCache(t *testing.T) {
	assert := assertion.New(t)
	c, err := NewRisCache(1 << 10)
	assert.NoError(err)
	defer c.Close()

	_, ok := c.Get("a")
	assert.False(ok)
	assert.True(c.Set("a", "decision", 1))
	c.Wait()
	v, ok := c.Get("a")
	assert.True(ok)
	assert.Equal("decision", v)

	c.Clear()
	_, ok = c.Get("a")
	assert.False(ok)

	var cache Cache = c
	assert.NotNil(cache)
}

func TestNop(t *testing.T) {
	assert := assertion.New(t)
	var c Cache = Nop{}
	assert.False(c.Set("a", 1, 1))
	_, ok := c.Get("a")
	assert.False(ok)
	c.Clear()
	c.Close()
}
