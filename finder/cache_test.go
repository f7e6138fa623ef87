// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiosk/locator/locations"
	"github.com/quiosk/locator/spatial"
)

func cacheFixture() []locations.Location {
	return []locations.Location{{
		ID: 1, Title: "Quiosk Centraal", Name: "Quiosk Centraal",
		City: "Utrecht", Coords: &spatial.Point{Lat: 52.09, Lng: 5.11},
	}}
}

func TestResultCacheRoundTrip(t *testing.T) {
	cache := NewResultCache(NewMemoryStorage(), time.Hour)

	cached, fresh := cache.Load(context.Background())
	assert.Nil(t, cached)
	assert.False(t, fresh)

	cache.Store(context.Background(), "manual", cacheFixture())

	cached, fresh = cache.Load(context.Background())
	require.NotNil(t, cached)
	assert.True(t, fresh)
	assert.Equal(t, "manual", cached.Source)
	assert.Equal(t, cacheFixture(), cached.Locations)
}

func TestResultCacheExpiry(t *testing.T) {
	now := time.Now()
	cache := NewResultCache(NewMemoryStorage(), time.Hour)
	cache.now = func() time.Time { return now }

	cache.Store(context.Background(), "manual", cacheFixture())

	now = now.Add(2 * time.Hour)

	// A stale snapshot is still returned, just flagged as such.
	cached, fresh := cache.Load(context.Background())
	require.NotNil(t, cached)
	assert.False(t, fresh)
}

func TestResultCacheIgnoresEmptySets(t *testing.T) {
	cache := NewResultCache(NewMemoryStorage(), time.Hour)

	cache.Store(context.Background(), "manual", nil)

	cached, _ := cache.Load(context.Background())
	assert.Nil(t, cached)
}

func TestResultCacheSwallowsStorageErrors(t *testing.T) {
	cache := NewResultCache(brokenStorage{}, time.Hour)

	cache.Store(context.Background(), "manual", cacheFixture())

	cached, fresh := cache.Load(context.Background())
	assert.Nil(t, cached)
	assert.False(t, fresh)
}

type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStorage) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk on fire")
}

func TestFileStorageRoundTrip(t *testing.T) {
	storage := NewFileStorage(t.TempDir())

	_, err := storage.Get(context.Background(), CacheKey)
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, storage.Set(context.Background(), CacheKey, []byte(`{"a":1}`), time.Hour))

	data, err := storage.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)
}

func TestFileStorageBackedResultCache(t *testing.T) {
	dir := t.TempDir()

	cache := NewResultCache(NewFileStorage(dir), time.Hour)
	cache.Store(context.Background(), "manual", cacheFixture())

	// A second cache over the same directory sees the snapshot, like a
	// restarted process.
	reopened := NewResultCache(NewFileStorage(dir), time.Hour)

	cached, fresh := reopened.Load(context.Background())
	require.NotNil(t, cached)
	assert.True(t, fresh)
	assert.Equal(t, cacheFixture(), cached.Locations)
}
