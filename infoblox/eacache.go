package infoblox

import "sync"

// EADefinitionCache caches the grid's extensible attribute definition names
// for the life of one client. Writers must call Invalidate after creating a
// definition so the next Get refetches.
type EADefinitionCache struct {
	mu     sync.Mutex
	names  []string
	loaded bool
}

func NewEADefinitionCache() *EADefinitionCache {
	return &EADefinitionCache{}
}

func (c *EADefinitionCache) Get(fetch func() ([]string, error)) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		names, err := fetch()
		if err != nil {
			return nil, err
		}
		c.names = names
		c.loaded = true
	}
	return append([]string{}, c.names...), nil
}

func (c *EADefinitionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.names = nil
}
