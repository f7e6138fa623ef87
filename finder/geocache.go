// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

// Package finder implements the interactive store locator: query-to-point
// resolution, distance ranking and the client-side caches.
package finder

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/locations"
	"github.com/quiosk/locator/spatial"
)

// GeocodeState is the lifecycle of one cached query.
type GeocodeState int

const (
	// GeocodeUnknown means the query has never been requested.
	GeocodeUnknown GeocodeState = iota
	// GeocodePending means a request is in flight.
	GeocodePending
	// GeocodeNotFound means the provider answered without a candidate.
	GeocodeNotFound
	// GeocodeResolved means coordinates are available.
	GeocodeResolved
)

// GeocodeCacheOptions configure a GeocodeCache.
type GeocodeCacheOptions struct {
	// Notify is invoked after every completed resolution so the caller
	// can re-render.
	Notify func()
	// NotFoundTTL makes "not found" entries expire so they are retried.
	// Zero keeps them forever.
	NotFoundTTL time.Duration
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// GeocodeCache memoizes query-to-coordinate lookups so a single normalized
// query costs at most one provider call. In-flight state is tracked per
// key: a second request for the same query while one is pending is
// suppressed, not queued.
type GeocodeCache struct {
	mu       sync.Mutex
	geocoder geocode.Geocoder
	entries  map[string]*spatial.Point // nil value = explicit not-found
	storedAt map[string]time.Time
	inflight map[string]bool
	options  GeocodeCacheOptions
}

// NewGeocodeCache creates a cache around the given provider. A nil
// geocoder is allowed and leaves every query unresolved.
func NewGeocodeCache(geocoder geocode.Geocoder, options GeocodeCacheOptions) *GeocodeCache {
	if options.Now == nil {
		options.Now = time.Now
	}

	return &GeocodeCache{
		geocoder: geocoder,
		entries:  make(map[string]*spatial.Point),
		storedAt: make(map[string]time.Time),
		inflight: make(map[string]bool),
		options:  options,
	}
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Lookup returns the cached point and state for a query without blocking.
// The three terminal answers are distinguishable: pending, resolved to
// nothing and resolved to a point.
func (c *GeocodeCache) Lookup(query string) (*spatial.Point, GeocodeState) {
	key := cacheKey(query)
	if key == "" {
		return nil, GeocodeUnknown
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if point, ok := c.entries[key]; ok {
		if point == nil {
			if c.notFoundExpiredLocked(key) {
				delete(c.entries, key)
				delete(c.storedAt, key)

				return nil, GeocodeUnknown
			}

			return nil, GeocodeNotFound
		}

		return point, GeocodeResolved
	}

	if c.inflight[key] {
		return nil, GeocodePending
	}

	return nil, GeocodeUnknown
}

func (c *GeocodeCache) notFoundExpiredLocked(key string) bool {
	if c.options.NotFoundTTL <= 0 {
		return false
	}

	return c.options.Now().Sub(c.storedAt[key]) >= c.options.NotFoundTTL
}

// Resolve starts an asynchronous lookup for the query unless its result is
// already cached or a request is in flight. Provider failures of any kind
// are stored as an explicit not-found, which is distinct from "still
// pending".
func (c *GeocodeCache) Resolve(ctx context.Context, query string) {
	key := cacheKey(query)
	if key == "" || c.geocoder == nil {
		return
	}

	c.mu.Lock()

	if _, ok := c.entries[key]; ok && !c.notFoundExpiredLocked(key) {
		c.mu.Unlock()

		return
	}

	if c.inflight[key] {
		c.mu.Unlock()

		return
	}

	c.inflight[key] = true
	c.mu.Unlock()

	go func() {
		query := locations.FormatDutchPostcode(query)

		result, err := c.geocoder.Geocode(ctx, query+", Nederland")

		c.mu.Lock()
		delete(c.inflight, key)

		if err == nil {
			point := result.Point
			c.entries[key] = &point
		} else {
			c.entries[key] = nil
		}

		c.storedAt[key] = c.options.Now()
		c.mu.Unlock()

		if c.options.Notify != nil {
			c.options.Notify()
		}
	}()
}

// resolveSync exists for tests: it performs the provider call on the
// calling goroutine.
func (c *GeocodeCache) resolveSync(ctx context.Context, query string) {
	key := cacheKey(query)
	if key == "" || c.geocoder == nil {
		return
	}

	result, err := c.geocoder.Geocode(ctx, locations.FormatDutchPostcode(query)+", Nederland")

	c.mu.Lock()
	delete(c.inflight, key)

	if err == nil {
		point := result.Point
		c.entries[key] = &point
	} else {
		c.entries[key] = nil
	}

	c.storedAt[key] = c.options.Now()
	c.mu.Unlock()
}
