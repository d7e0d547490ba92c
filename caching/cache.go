package caching

// Cache holds values for a bounded cost, sets may be dropped under pressure.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, val interface{}, cost int64) bool
	Clear()
	Close()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(string) (interface{}, bool)      { return nil, false }
func (Nop) Set(string, interface{}, int64) bool { return false }
func (Nop) Clear()                              {}
func (Nop) Close()                              {}
