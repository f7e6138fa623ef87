// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) *GoogleMapsGeocoder {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	geocoder := NewGoogleMapsGeocoder("test-key")
	geocoder.baseURL = server.URL

	return geocoder
}

func TestGoogleMapsGeocoderOK(t *testing.T) {
	var gotQuery, gotRegion string

	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("address")
		gotRegion = r.URL.Query().Get("region")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Stationsplein 1, 3511 ED Utrecht, Netherlands",
				"geometry": {
					"location": {"lat": 52.0894, "lng": 5.1100},
					"location_type": "ROOFTOP"
				}
			}]
		}`))
	})

	result, err := geocoder.Geocode(context.Background(), "Stationsplein 1, 3511 ED Utrecht, Nederland")
	require.NoError(t, err)

	assert.Equal(t, "Stationsplein 1, 3511 ED Utrecht, Nederland", gotQuery)
	assert.Equal(t, "nl", gotRegion)
	assert.InDelta(t, 52.0894, result.Point.Lat, 1e-9)
	assert.InDelta(t, 5.1100, result.Point.Lng, 1e-9)
	assert.Equal(t, "high", result.Confidence)
	assert.Equal(t, "google_maps", result.Provider)
}

func TestGoogleMapsGeocoderConfidence(t *testing.T) {
	tests := []struct {
		locationType string
		expected     string
	}{
		{"ROOFTOP", "high"},
		{"RANGE_INTERPOLATED", "high"},
		{"GEOMETRIC_CENTER", "medium"},
		{"APPROXIMATE", "low"},
	}

	for _, tt := range tests {
		t.Run(tt.locationType, func(t *testing.T) {
			geocoder := newTestGeocoder(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"status": "OK",
					"results": [{
						"geometry": {
							"location": {"lat": 52.0, "lng": 5.0},
							"location_type": "` + tt.locationType + `"
						}
					}]
				}`))
			})

			result, err := geocoder.Geocode(context.Background(), "x")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Confidence)
		})
	}
}

func TestGoogleMapsGeocoderZeroResults(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, err := geocoder.Geocode(context.Background(), "Nergensweg 1, Nederland")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGoogleMapsGeocoderRateLimited(t *testing.T) {
	geocoder := newTestGeocoder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := geocoder.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.False(t, IsNotFound(err))
}

func TestGoogleMapsGeocoderMissingKey(t *testing.T) {
	geocoder := NewGoogleMapsGeocoder("")

	_, err := geocoder.Geocode(context.Background(), "x")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeQuotaExceeded},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusBadGateway, ErrorTypeNetwork},
		{http.StatusServiceUnavailable, ErrorTypeNetwork},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPError(tt.status); got.Type != tt.expected {
			t.Errorf("ClassifyHTTPError(%d).Type = %v, want %v", tt.status, got.Type, tt.expected)
		}
	}
}
