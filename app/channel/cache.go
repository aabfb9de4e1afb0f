package channel

import (
	"fmt"
	"sync"
)

// Cache holds compiled channels by name so pollers do not recompile
// patterns on every pass. Entries are immutable; replacing a channel means
// deleting and storing it again.
type Cache struct {
	entries map[string]*ValidatedChannel
	mu      sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*ValidatedChannel),
	}
}

// Load validates def and stores the compiled channel.
func (c *Cache) Load(def Definition) (*ValidatedChannel, error) {
	validated, err := Validate(def)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[def.Name] = validated

	return validated, nil
}

func (c *Cache) Get(name string) (*ValidatedChannel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	validated, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("channel '%s' not found in cache", name)
	}
	return validated, nil
}

func (c *Cache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
