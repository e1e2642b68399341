// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache is the durable key→value store consulted before
// network-bound operations. Keys are content hashes of an operation's
// semantic inputs; entries expire by TTL at read time.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Cache stores opaque values per namespace.
type Cache interface {
	// Get returns the value stored under (namespace, key) if it was written
	// less than ttl ago. A zero ttl never expires.
	Get(ctx context.Context, namespace, key string, ttl time.Duration) ([]byte, bool, error)

	// Set stores value under (namespace, key), replacing any previous value.
	Set(ctx context.Context, namespace, key string, value []byte) error
}

// Key hashes the semantic inputs of an operation into a cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached JSON value into v. Decode failures count as a miss.
func GetJSON(ctx context.Context, c Cache, namespace, key string, ttl time.Duration, v any) bool {
	if c == nil {
		return false
	}
	data, ok, err := c.Get(ctx, namespace, key, ttl)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v as JSON and stores it. Errors are returned for logging;
// callers never fail an operation because the cache write failed.
func SetJSON(ctx context.Context, c Cache, namespace, key string, v any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, namespace, key, data)
}

// Memory is an in-process Cache. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	written time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, namespace, key string, ttl time.Duration) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[memoryKey(namespace, key)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if ttl > 0 && m.now().Sub(e.written) > ttl {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	m.entries[memoryKey(namespace, key)] = memoryEntry{
		value:   append([]byte(nil), value...),
		written: m.now(),
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func memoryKey(namespace, key string) string {
	return strings.Join([]string{namespace, key}, "\x00")
}
