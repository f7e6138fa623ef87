// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the geographic primitives shared by the importer
// and the finder.
package spatial

import (
	"database/sql/driver"
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const earthRadiusKm = 6371

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		p.Lat, p.Lng = 0, 0

		return nil
	}

	switch v := value.(type) {
	case []byte:
		// The format from DuckDB is "POINT (lng lat)"
		_, err := fmt.Sscanf(string(v), "POINT (%f %f)", &p.Lng, &p.Lat)

		return err
	case map[string]interface{}:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.Lng = x
		p.Lat = y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}

// DistanceKm calculates the great-circle distance between two points in
// kilometers. A nil point means "no position" and yields +Inf so that
// distance-ranked sorts push such entries to the end.
func DistanceKm(a, b *Point) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Centroid returns the arithmetic mean of the given points, or nil when the
// slice is empty.
func Centroid(points []Point) *Point {
	if len(points) == 0 {
		return nil
	}

	var sumLat, sumLng float64

	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}

	n := float64(len(points))

	return &Point{Lat: sumLat / n, Lng: sumLng / n}
}

// Reasonable bounds for the Netherlands, with roughly a degree of margin for
// coastal and border addresses.
const (
	nlMinLat = 50.5
	nlMaxLat = 54.0
	nlMinLng = 2.5
	nlMaxLng = 7.5
)

// ValidateCoordinates verifies that the coordinates are plausible for a
// Dutch vending-machine site.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", lat)
	}

	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", lng)
	}

	if lat < nlMinLat || lat > nlMaxLat {
		return fmt.Errorf("latitude outside the Netherlands (%f to %f): %f", nlMinLat, nlMaxLat, lat)
	}

	if lng < nlMinLng || lng > nlMaxLng {
		return fmt.Errorf("longitude outside the Netherlands (%f to %f): %f", nlMinLng, nlMaxLng, lng)
	}

	return nil
}

// CellRes7 returns the H3 cell at resolution 7 for a point. Resolution 7
// hexagons are neighbourhood sized, which is the granularity the operator
// stats report on.
func CellRes7(p Point) (uint64, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), 7)
	if err != nil {
		return 0, fmt.Errorf("converting to h3 cell: %w", err)
	}

	return uint64(cell), nil
}
