// Package cache stores rendered page views. The in-memory store is used by
// default; a Redis store is used when REDIS_URL is configured.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte oriented key/value store with expiry. Implementations are
// safe for concurrent use.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl means the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Error is a cache error constant.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrCacheMiss   Error = "cache miss"
	ErrCacheClosed Error = "cache closed"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// DefaultMaxEntries bounds the in-memory store when no limit is configured.
const DefaultMaxEntries = 1000

// MemoryOptions configures the in-memory store.
type MemoryOptions struct {
	DefaultTTL time.Duration
	// MaxEntries 为 0 时使用 DefaultMaxEntries
	MaxEntries int
	// CleanupInterval 为 0 时不启动后台清理，过期条目只在写满时移除
	CleanupInterval time.Duration
}

// Memory is an in-process Cache.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]entry
	defaultTTL time.Duration
	maxEntries int
	closed     bool
	stopCh     chan struct{}
	now        func() time.Time
}

// NewMemory creates an in-memory cache without a background sweep.
func NewMemory(defaultTTL time.Duration) *Memory {
	return NewMemoryWithOptions(MemoryOptions{DefaultTTL: defaultTTL})
}

// NewMemoryWithOptions creates an in-memory cache. A positive
// CleanupInterval starts a goroutine that runs until Close.
func NewMemoryWithOptions(opts MemoryOptions) *Memory {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	m := &Memory{
		items:      make(map[string]entry),
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	if opts.CleanupInterval > 0 {
		go m.cleanupLoop(opts.CleanupInterval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrCacheClosed
	}
	e, ok := m.items[key]
	if !ok || m.now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrCacheClosed
	}
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.removeExpiredLocked()
		if len(m.items) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	m.items[key] = entry{value: copied, expiresAt: m.now().Add(ttl)}
	return nil
}

// removeExpiredLocked 需持有写锁。
func (m *Memory) removeExpiredLocked() {
	now := m.now()
	for key, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, key)
		}
	}
}

// evictOldestLocked drops the entry closest to expiry.
func (m *Memory) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range m.items {
		if !found || e.expiresAt.Before(oldest) {
			oldestKey, oldest, found = key, e.expiresAt, true
		}
	}
	if found {
		delete(m.items, oldestKey)
	}
}

// RemoveExpired drops every expired entry.
func (m *Memory) RemoveExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeExpiredLocked()
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RemoveExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]entry)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.stopCh)
	}
	m.items = nil
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
