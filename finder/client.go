// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quiosk/locator/locations"
)

// feedTimeout bounds one feed request. The finder prefers a stale
// snapshot over a slow feed.
const feedTimeout = 2500 * time.Millisecond

// DefaultStaticFeedURL is the last-resort snapshot used when the live
// feed is unreachable and no cache exists.
const DefaultStaticFeedURL = "https://static.quiosk.nl/locations.json"

// ErrEmptyFeed is returned when a feed responds but carries no usable
// locations.
var ErrEmptyFeed = errors.New("feed contains no locations")

// Client loads the servable location set for the finder, caching the last
// good snapshot and falling back to it when the feed misbehaves.
type Client struct {
	feedURL    string
	staticURL  string
	cache      *ResultCache
	httpClient *http.Client
}

// ClientOptions tune a feed client.
type ClientOptions struct {
	// StaticURL overrides DefaultStaticFeedURL. Empty disables the
	// static fallback.
	StaticURL *string
	// Cache stores the last good snapshot. Nil means no caching.
	Cache *ResultCache
	// HTTPClient overrides the default 2.5s-timeout client.
	HTTPClient *http.Client
}

// NewClient creates a feed client for the given live feed URL.
func NewClient(feedURL string, options ClientOptions) *Client {
	staticURL := DefaultStaticFeedURL
	if options.StaticURL != nil {
		staticURL = *options.StaticURL
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedTimeout}
	}

	return &Client{
		feedURL:    feedURL,
		staticURL:  staticURL,
		cache:      options.Cache,
		httpClient: httpClient,
	}
}

// Snapshot is one resolved location set plus where it came from.
type Snapshot struct {
	Source    string
	Locations []locations.Location
	FromCache bool
	Stale     bool
}

// Load resolves the servable set: fresh cache first, then the live feed,
// then the static fallback, then a stale cache entry. Records without
// coordinates are dropped.
func (c *Client) Load(ctx context.Context) (*Snapshot, error) {
	var stale *CachedLocations

	if c.cache != nil {
		if cached, fresh := c.cache.Load(ctx); cached != nil {
			if fresh {
				return &Snapshot{
					Source:    cached.Source,
					Locations: cached.Locations,
					FromCache: true,
				}, nil
			}

			stale = cached
		}
	}

	var lastErr error

	for _, source := range []string{c.feedURL, c.staticURL} {
		if source == "" {
			continue
		}

		locs, err := c.fetch(ctx, source)
		if err != nil {
			lastErr = err

			continue
		}

		if c.cache != nil {
			c.cache.Store(ctx, source, locs)
		}

		return &Snapshot{Source: source, Locations: locs}, nil
	}

	if stale != nil {
		return &Snapshot{
			Source:    stale.Source,
			Locations: stale.Locations,
			FromCache: true,
			Stale:     true,
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no feed configured")
	}

	return nil, fmt.Errorf("loading locations: %w", lastErr)
}

// LoadAllowStale serves whatever the cache holds right away. A stale
// snapshot kicks off a background refresh so the next Load is fresh
// again. Without a cached snapshot it behaves like Load.
func (c *Client) LoadAllowStale(ctx context.Context) (*Snapshot, error) {
	if c.cache == nil {
		return c.Load(ctx)
	}

	cached, fresh := c.cache.Load(ctx)
	if cached == nil {
		return c.Load(ctx)
	}

	if !fresh {
		go func() {
			_, _ = c.Load(context.WithoutCancel(ctx))
		}()
	}

	return &Snapshot{
		Source:    cached.Source,
		Locations: cached.Locations,
		FromCache: true,
		Stale:     !fresh,
	}, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]locations.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	return decodeFeed(body)
}

// decodeFeed accepts both a bare array and a wrapped {locations: [...]}
// payload. Every record goes through the same normalization as an import,
// so partial feeds still get their defaults filled in.
func decodeFeed(body []byte) ([]locations.Location, error) {
	var wrapped struct {
		Locations []map[string]any `json:"locations"`
	}

	var records []map[string]any

	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Locations != nil {
		records = wrapped.Locations
	} else {
		var bare []map[string]any
		if err := json.Unmarshal(body, &bare); err != nil {
			return nil, fmt.Errorf("decoding feed: %w", err)
		}

		records = bare
	}

	var ret []locations.Location

	for i, record := range records {
		loc := locations.NormalizeRecord(locations.NormalizeKeys(record), i+1)
		if loc.Coords == nil {
			continue
		}

		if id, ok := record["id"].(float64); ok {
			loc.ID = int(id)
		}

		if loc.ID == 0 {
			loc.ID = len(ret) + 1
		}

		ret = append(ret, loc)
	}

	if len(ret) == 0 {
		return nil, ErrEmptyFeed
	}

	return ret, nil
}
