package resolver

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store holds resolution results keyed by IP. Implementations must be safe
// for concurrent use, and Set must replace any existing entry for the IP.
type Store interface {
	Get(ip string) (Result, bool)
	Set(ip string, result Result)
	Len() int
}

// MapStore never forgets a result. Once an IP is stored it is never
// resolved again for the lifetime of the process.
type MapStore struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMapStore creates an empty terminal store.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[string]Result)}
}

// Get returns the stored result for ip.
func (s *MapStore) Get(ip string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[ip]
	return r, ok
}

// Set stores result for ip.
func (s *MapStore) Set(ip string, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ip] = result
}

// Len returns the number of stored IPs.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ExpiringStore forgets results after a TTL and keeps at most size entries,
// so an IP whose record changed is eventually resolved again.
type ExpiringStore struct {
	lru *expirable.LRU[string, Result]
}

// NewExpiringStore creates a store bounded by size and ttl.
func NewExpiringStore(size int, ttl time.Duration) *ExpiringStore {
	return &ExpiringStore{lru: expirable.NewLRU[string, Result](size, nil, ttl)}
}

// Get returns the stored result for ip if it has not expired.
func (s *ExpiringStore) Get(ip string) (Result, bool) {
	return s.lru.Get(ip)
}

// Set stores result for ip, resetting its TTL.
func (s *ExpiringStore) Set(ip string, result Result) {
	s.lru.Add(ip, result)
}

// Len returns the number of live entries.
func (s *ExpiringStore) Len() int {
	return s.lru.Len()
}
