package xpath

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes compiled paths by source text. Concurrent compiles of the
// same text share one result. Failed compiles are not cached.
type Cache struct {
	paths sync.Map
	group singleflight.Group
}

var defaultCache Cache

// Cached compiles expr through a process-wide Cache.
func Cached(expr string) (*Path, error) {
	return defaultCache.Compile(expr)
}

// Compile returns the cached Path for expr, compiling it on first use.
func (c *Cache) Compile(expr string) (*Path, error) {
	if p, ok := c.paths.Load(expr); ok {
		return p.(*Path), nil
	}
	v, err, _ := c.group.Do(expr, func() (any, error) {
		p, err := Compile(expr)
		if err != nil {
			return nil, err
		}
		actual, _ := c.paths.LoadOrStore(expr, p)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Path), nil
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	n := 0
	c.paths.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
