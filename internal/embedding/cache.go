package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PhraseCache is an LRU cache of phrase embeddings keyed by normalized text.
// A nil *PhraseCache is valid and caches nothing.
type PhraseCache struct {
	entries *lru.Cache[string, []float32]
}

// NewPhraseCache creates a cache holding up to capacity embeddings.
// A capacity below one disables caching.
func NewPhraseCache(capacity int) (*PhraseCache, error) {
	if capacity < 1 {
		return nil, nil
	}
	entries, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &PhraseCache{entries: entries}, nil
}

// Get returns a copy of the cached embedding for key if present.
func (c *PhraseCache) Get(key string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Set stores a copy of the embedding for key, evicting the least recently used entry at capacity.
func (c *PhraseCache) Set(key string, value []float32) {
	if c == nil {
		return
	}
	c.entries.Add(key, append([]float32(nil), value...))
}

// Len returns the number of cached embeddings.
func (c *PhraseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
