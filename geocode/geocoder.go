// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode talks to external address-to-coordinate providers.
package geocode

import (
	"context"
	"errors"

	"github.com/quiosk/locator/spatial"
)

// ErrNotFound means the provider answered but had no candidate for the
// query. It is a resolution failure, not a transport error.
var ErrNotFound = errors.New("no geocoding result for query")

// ErrMissingAPIKey is a configuration error: geocoding was requested but no
// API key is available. It is surfaced to the operator, never per row.
var ErrMissingAPIKey = errors.New("geocoding API key is not configured")

// Result represents a geocoding result from any provider.
type Result struct {
	Point       spatial.Point
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder interface for different geocoding providers. The query is free
// text; callers are expected to append their own region context (street,
// postcode, city, country).
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}
