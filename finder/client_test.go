// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrappedFeed = `{
	"source": "manual",
	"count": 2,
	"locations": [
		{"id": 1, "title": "Quiosk Centraal", "city": "Utrecht",
		 "coords": {"lat": 52.09, "lng": 5.11}},
		{"id": 2, "title": "Quiosk Zwevend", "city": "Zwolle"}
	]
}`

func newFeedServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server.URL
}

func noStatic() ClientOptions {
	empty := ""

	return ClientOptions{StaticURL: &empty}
}

func TestClientLoadWrappedFeed(t *testing.T) {
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(wrappedFeed))
	})

	client := NewClient(url, noStatic())

	snapshot, err := client.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Locations, 1, "coordless records are dropped")
	assert.Equal(t, "Quiosk Centraal", snapshot.Locations[0].Name)
	assert.Equal(t, 1, snapshot.Locations[0].ID)
	assert.False(t, snapshot.FromCache)

	// Partial records still pick up their defaults.
	assert.True(t, snapshot.Locations[0].IsOpen)
	assert.Equal(t, []string{"Drinks", "Snacks"}, snapshot.Locations[0].Products)
}

func TestClientLoadBareArrayFeed(t *testing.T) {
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"title": "Quiosk Park", "lat": 52.15, "lng": 5.38}]`))
	})

	client := NewClient(url, noStatic())

	snapshot, err := client.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Locations, 1)
	assert.Equal(t, "Quiosk Park", snapshot.Locations[0].Name)
}

func TestClientFallsBackToStaticFeed(t *testing.T) {
	staticURL := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(wrappedFeed))
	})
	liveURL := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := NewClient(liveURL, ClientOptions{StaticURL: &staticURL})

	snapshot, err := client.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, staticURL, snapshot.Source)
}

func TestClientUsesFreshCache(t *testing.T) {
	calls := 0
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++

		_, _ = w.Write([]byte(wrappedFeed))
	})

	cache := NewResultCache(NewMemoryStorage(), time.Hour)
	options := noStatic()
	options.Cache = cache

	client := NewClient(url, options)

	first, err := client.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := client.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.False(t, second.Stale)
	assert.Equal(t, 1, calls, "a fresh cache must skip the feed")
}

func TestClientServesStaleCacheOnOutage(t *testing.T) {
	healthy := true
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte(wrappedFeed))
	})

	now := time.Now()
	cache := NewResultCache(NewMemoryStorage(), time.Hour)
	cache.now = func() time.Time { return now }

	options := noStatic()
	options.Cache = cache

	client := NewClient(url, options)

	_, err := client.Load(context.Background())
	require.NoError(t, err)

	// The feed goes down and the snapshot ages past its TTL.
	healthy = false
	now = now.Add(2 * time.Hour)

	snapshot, err := client.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.FromCache)
	assert.True(t, snapshot.Stale)
	require.Len(t, snapshot.Locations, 1)
}

func TestClientAllowStaleRefreshesInBackground(t *testing.T) {
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(wrappedFeed))
	})

	now := time.Now()
	cache := NewResultCache(NewMemoryStorage(), time.Hour)
	cache.now = func() time.Time { return now }

	options := noStatic()
	options.Cache = cache

	client := NewClient(url, options)

	_, err := client.Load(context.Background())
	require.NoError(t, err)

	// The snapshot ages past its TTL but must still be served right away.
	now = now.Add(2 * time.Hour)

	snapshot, err := client.LoadAllowStale(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.FromCache)
	assert.True(t, snapshot.Stale)
	require.Len(t, snapshot.Locations, 1)

	require.Eventually(t, func() bool {
		_, fresh := cache.Load(context.Background())

		return fresh
	}, 2*time.Second, 10*time.Millisecond, "the background refresh must restore a fresh cache entry")
}

func TestClientErrorsWhenNothingAnswers(t *testing.T) {
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := NewClient(url, noStatic())

	_, err := client.Load(context.Background())
	require.Error(t, err)
}

func TestClientRejectsEmptyFeed(t *testing.T) {
	url := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"locations": []}`))
	})

	client := NewClient(url, noStatic())

	_, err := client.Load(context.Background())
	require.ErrorIs(t, err, ErrEmptyFeed)
}
