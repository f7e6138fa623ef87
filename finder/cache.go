// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quiosk/locator/locations"
)

// ErrCacheMiss is returned by a Storage when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

const (
	// CacheKey identifies the cached location snapshot across backends.
	CacheKey = "quioskFinderLocationsCacheV1"
	// DefaultCacheTTL bounds how stale a snapshot may be before the
	// finder refetches the feed.
	DefaultCacheTTL = 6 * time.Hour
)

// Storage is a minimal key/value backend for the result cache.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryStorage is a process-local Storage, used by default and in tests.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	return value, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value

	return nil
}

// FileStorage persists cache entries as files in a directory, so a
// restarted process keeps its snapshot.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a file-backed Storage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	return data, nil
}

func (s *FileStorage) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing cache entry: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("closing cache entry: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key+".json")); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("replacing cache entry: %w", err)
	}

	return nil
}

// RedisStorage shares the cache between finder instances.
type RedisStorage struct {
	client redis.UniversalClient
}

// NewRedisStorage creates a Storage on top of an existing redis client.
func NewRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	return value, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// CachedLocations is the persisted snapshot format.
type CachedLocations struct {
	Source    string               `json:"source"`
	CreatedAt time.Time            `json:"createdAt"`
	Locations []locations.Location `json:"locations"`
}

// ResultCache keeps the last good location snapshot around so the finder
// can render instantly and survive feed outages. Storage failures are
// swallowed: a broken cache degrades to a fetch, never to an error.
type ResultCache struct {
	storage Storage
	ttl     time.Duration
	now     func() time.Time
}

// NewResultCache creates a cache over the given backend. A zero ttl means
// DefaultCacheTTL.
func NewResultCache(storage Storage, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &ResultCache{storage: storage, ttl: ttl, now: time.Now}
}

// Load returns the cached snapshot and whether it is still fresh. A
// stale snapshot is still returned so callers can serve it while they
// revalidate.
func (c *ResultCache) Load(ctx context.Context) (*CachedLocations, bool) {
	data, err := c.storage.Get(ctx, CacheKey)
	if err != nil {
		return nil, false
	}

	var cached CachedLocations
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}

	if len(cached.Locations) == 0 {
		return nil, false
	}

	fresh := c.now().Sub(cached.CreatedAt) < c.ttl

	return &cached, fresh
}

// Store persists a snapshot, stamping it with the current time.
func (c *ResultCache) Store(ctx context.Context, source string, locs []locations.Location) {
	if len(locs) == 0 {
		return
	}

	data, err := json.Marshal(CachedLocations{
		Source:    source,
		CreatedAt: c.now(),
		Locations: locs,
	})
	if err != nil {
		return
	}

	_ = c.storage.Set(ctx, CacheKey, data, c.ttl)
}
