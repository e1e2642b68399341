// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Blocklist is the set of domains the cloud-stealth stage was rejected on.
// It lives as long as the Service that owns it and is never pruned.
// Safe for concurrent use.
type Blocklist struct {
	mu      sync.RWMutex
	domains map[string]struct{}
}

// NewBlocklist returns an empty blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{domains: make(map[string]struct{})}
}

// Add records domain and reports whether it was new.
func (b *Blocklist) Add(domain string) bool {
	if domain == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.domains[domain]; ok {
		return false
	}
	b.domains[domain] = struct{}{}
	return true
}

// Contains reports whether domain is blocked.
func (b *Blocklist) Contains(domain string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.domains[domain]
	return ok
}

// Domains returns the blocked domains in sorted order.
func (b *Blocklist) Domains() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.domains))
	for d := range b.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Domain returns the lowercased host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
