package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is the in-process fast tier. Items expire after the memory TTL
// regardless of their class TTL; the janitor sweeps them every cleanup
// interval.
type Memory struct {
	items *gocache.Cache
}

// NewMemory creates a fast tier
func NewMemory(ttl, cleanupInterval time.Duration) *Memory {
	return &Memory{items: gocache.New(ttl, cleanupInterval)}
}

// Get returns the stored entry bytes
func (m *Memory) Get(key string) ([]byte, bool) {
	x, found := m.items.Get(key)
	if !found {
		return nil, false
	}
	data, ok := x.([]byte)
	return data, ok
}

// Set stores entry bytes with the memory TTL
func (m *Memory) Set(key string, data []byte) {
	m.items.Set(key, data, gocache.DefaultExpiration)
}

// Delete removes key
func (m *Memory) Delete(key string) {
	m.items.Delete(key)
}

// DeletePrefix removes every key starting with prefix
func (m *Memory) DeletePrefix(prefix string) int {
	n := 0
	for key := range m.items.Items() {
		if strings.HasPrefix(key, prefix) {
			m.items.Delete(key)
			n++
		}
	}
	return n
}

// Flush drops every item
func (m *Memory) Flush() {
	m.items.Flush()
}

// Len returns the number of items, including expired ones not yet swept
func (m *Memory) Len() int {
	return m.items.ItemCount()
}
