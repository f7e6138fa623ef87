// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"testing"
)

var (
	utrecht   = Point{Lat: 52.0907, Lng: 5.1214}
	groningen = Point{Lat: 53.2194, Lng: 6.5665}
)

func TestDistanceKmCommutative(t *testing.T) {
	ab := DistanceKm(&utrecht, &groningen)
	ba := DistanceKm(&groningen, &utrecht)

	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not commutative: %f vs %f", ab, ba)
	}

	// Utrecht-Groningen is roughly 156 km as the crow flies.
	if ab < 140 || ab > 170 {
		t.Errorf("unexpected Utrecht-Groningen distance: %f km", ab)
	}
}

func TestDistanceKmSamePoint(t *testing.T) {
	if d := DistanceKm(&utrecht, &utrecht); d > 1e-9 {
		t.Errorf("expected ~0 for identical points, got %f", d)
	}
}

func TestDistanceKmNil(t *testing.T) {
	if d := DistanceKm(nil, &utrecht); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for nil point, got %f", d)
	}

	if d := DistanceKm(&utrecht, nil); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for nil point, got %f", d)
	}
}

func TestCentroid(t *testing.T) {
	if c := Centroid(nil); c != nil {
		t.Errorf("expected nil centroid for empty slice, got %+v", c)
	}

	c := Centroid([]Point{utrecht, groningen})
	if c == nil {
		t.Fatal("expected centroid")
	}

	wantLat := (utrecht.Lat + groningen.Lat) / 2
	wantLng := (utrecht.Lng + groningen.Lng) / 2

	if math.Abs(c.Lat-wantLat) > 1e-9 || math.Abs(c.Lng-wantLng) > 1e-9 {
		t.Errorf("centroid mismatch: got %+v want {%f %f}", c, wantLat, wantLng)
	}
}

func TestValidateCoordinates(t *testing.T) {
	if err := ValidateCoordinates(utrecht.Lat, utrecht.Lng); err != nil {
		t.Errorf("Utrecht should be valid: %v", err)
	}

	if err := ValidateCoordinates(91, 5); err == nil {
		t.Error("latitude 91 should be rejected")
	}

	// Montevideo is a fine city but not a Dutch one.
	if err := ValidateCoordinates(-34.9, -56.2); err == nil {
		t.Error("coordinates outside the Netherlands should be rejected")
	}
}

func TestCellRes7(t *testing.T) {
	a, err := CellRes7(utrecht)
	if err != nil {
		t.Fatalf("CellRes7: %v", err)
	}

	b, err := CellRes7(groningen)
	if err != nil {
		t.Fatalf("CellRes7: %v", err)
	}

	if a == 0 || b == 0 {
		t.Error("expected non-zero cells")
	}

	if a == b {
		t.Error("Utrecht and Groningen should not share a res-7 cell")
	}
}
