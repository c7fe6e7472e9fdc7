package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/mapscout/models"
)

// entry holds a cached result set with its creation timestamp.
type entry struct {
	businesses []models.Business
	createdAt  time.Time
}

// Cache is a simple in-memory cache for completed job results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour).
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the query, location and limit. Query and
// location are compared case-insensitively.
func Key(query, location string, limit int) string {
	h := sha256.New()
	// Length-prefixed so no field content can shift a boundary.
	for _, field := range []string{query, location} {
		field = strings.ToLower(strings.TrimSpace(field))
		h.Write([]byte(strconv.Itoa(len(field)) + ":" + field))
	}
	h.Write([]byte(strconv.Itoa(limit)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves cached businesses if they exist and are younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// The returned slice is a copy.
func (c *Cache) Get(key string, maxAgeMs int) ([]models.Business, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return append([]models.Business(nil), e.businesses...), true
}

// Set stores businesses in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, businesses []models.Business) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		businesses: append([]models.Business(nil), businesses...),
		createdAt:  time.Now(),
	}
}

// Len returns the number of cached result sets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
