package store

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"storefront/internal/models"
)

// MemoryCache is an in-process cache used for local runs without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.CacheEntry)}
}

func (c *MemoryCache) Put(_ context.Context, key string, entry models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Body = append([]byte(nil), entry.Body...)
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Match(_ context.Context, key string) (*models.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBucket is an in-process object bucket.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memoryObject)}
}

func (b *MemoryBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBucket) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Object returns a stored object's bytes and content type.
func (b *MemoryBucket) Object(key string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	return obj.data, obj.contentType, ok
}
