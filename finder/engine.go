// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/quiosk/locator/locations"
	"github.com/quiosk/locator/spatial"
)

// SearchState tells apart the empty results a search can produce. The UI
// must never collapse these into one generic message.
type SearchState int

const (
	// StateResults means the search produced at least one location.
	StateResults SearchState = iota
	// StateNoMatches is the generic "nothing within these filters".
	StateNoMatches
	// StatePending means the geocode request for the query is still in
	// flight.
	StatePending
	// StatePlaceNotFound means the place could not be geocoded and no
	// textual match exists either.
	StatePlaceNotFound
)

// RankedLocation is a servable location with its distance to the
// reference point, when one exists.
type RankedLocation struct {
	locations.Location
	DistanceKm float64
}

// Result is the outcome of one search.
type Result struct {
	State          SearchState
	Items          []RankedLocation
	ReferencePoint *spatial.Point
	// PlaceServed reports whether any location directly belongs to the
	// searched place (postcode or city level), for "no Quiosk in X yet"
	// messaging.
	PlaceServed bool
}

// Engine ranks and filters the location set for the interactive finder.
type Engine struct {
	mu         sync.Mutex
	locations  []locations.Location
	geocache   *GeocodeCache
	current    *spatial.Point
	useCurrent bool
}

// NewEngine creates a search engine over the given servable set.
func NewEngine(locs []locations.Location, geocache *GeocodeCache) *Engine {
	return &Engine{locations: locs, geocache: geocache}
}

// SetLocations swaps the location set, e.g. after a cache revalidation.
func (e *Engine) SetLocations(locs []locations.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locations = locs
}

// UseCurrentLocation pins the reference point to the device position. It
// takes priority over any geocoded query.
func (e *Engine) UseCurrentLocation(p spatial.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &p
	e.useCurrent = true
}

// ClearCurrentLocation drops the device position, e.g. when the user types
// a new query.
func (e *Engine) ClearCurrentLocation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	e.useCurrent = false
}

// matchesQuery reports whether the query occurs in the location's
// city/postcode/name/address haystack, first verbatim and then loosely.
func matchesQuery(loc *locations.Location, query string) bool {
	if query == "" {
		return true
	}

	haystack := strings.ToLower(strings.Join([]string{
		loc.City, loc.Postcode, loc.Name, loc.Address,
	}, " "))

	if strings.Contains(haystack, strings.ToLower(query)) {
		return true
	}

	return strings.Contains(locations.NormalizeLoose(haystack), locations.NormalizeLoose(query))
}

// matchesPlace is stricter than matchesQuery: it only fires when the
// query names the place a location belongs to.
func matchesPlace(loc *locations.Location, query string) bool {
	q := locations.NormalizeLoose(query)
	if q == "" {
		return false
	}

	if postcode := locations.NormalizeLoose(loc.Postcode); postcode != "" && postcode == q {
		return true
	}

	if city := locations.NormalizeLoose(loc.City); city != "" {
		if city == q || strings.HasPrefix(city, q) || strings.HasPrefix(q, city) {
			return true
		}
	}

	name := locations.NormalizeLoose(strings.TrimPrefix(strings.ToLower(loc.Name), "quiosk"))
	if name != "" && (name == q || strings.HasPrefix(name, q) || strings.HasPrefix(q, name)) {
		return true
	}

	return false
}

// Search produces the ordered, filtered result list for a query and a
// radius in kilometers (0 = unlimited). It never blocks on the geocoder:
// while the query's geocode request is in flight the result carries
// StatePending.
func (e *Engine) Search(ctx context.Context, query string, radiusKm float64) Result {
	e.mu.Lock()
	locs := e.locations
	usingCurrent := e.useCurrent && e.current != nil
	current := e.current
	e.mu.Unlock()

	query = strings.TrimSpace(query)

	// An empty query skips all distance logic.
	if query == "" && !usingCurrent {
		items := make([]RankedLocation, 0, len(locs))

		for i := range locs {
			if locs[i].Coords == nil {
				continue
			}

			items = append(items, RankedLocation{Location: locs[i]})
		}

		sortAlphabetically(items)

		return Result{State: stateFor(items), Items: items, PlaceServed: true}
	}

	var (
		geocodePoint *spatial.Point
		geocodeState GeocodeState
	)

	if query != "" && !usingCurrent && e.geocache != nil {
		e.geocache.Resolve(ctx, query)
		geocodePoint, geocodeState = e.geocache.Lookup(query)
	}

	// Textual matches feed the centroid fallback when the query itself
	// could not (yet) be geocoded.
	var (
		matchPoints []spatial.Point
		textMatches int
	)

	for i := range locs {
		if query == "" || !matchesQuery(&locs[i], query) {
			continue
		}

		textMatches++

		if locs[i].Coords != nil {
			matchPoints = append(matchPoints, *locs[i].Coords)
		}
	}

	reference := spatial.Centroid(matchPoints)
	if geocodeState == GeocodeResolved {
		reference = geocodePoint
	}

	if usingCurrent {
		reference = current
	}

	var items []RankedLocation

	for i := range locs {
		loc := &locs[i]
		if loc.Coords == nil {
			continue
		}

		switch {
		case radiusKm > 0:
			if reference == nil {
				continue
			}

			if spatial.DistanceKm(reference, loc.Coords) > radiusKm {
				continue
			}
		case query != "":
			// With a geocoded query everything stays in, ranked by
			// distance; otherwise only textual matches remain.
			if geocodeState != GeocodeResolved && !matchesQuery(loc, query) {
				continue
			}
		}

		item := RankedLocation{Location: *loc}
		if reference != nil {
			item.DistanceKm = spatial.DistanceKm(reference, loc.Coords)
		}

		items = append(items, item)
	}

	if reference != nil {
		sortByDistance(items)
	} else {
		sortAlphabetically(items)
	}

	placeServed := usingCurrent || query == ""
	if !placeServed {
		for i := range locs {
			if matchesPlace(&locs[i], query) {
				placeServed = true

				break
			}
		}
	}

	result := Result{
		Items:          items,
		ReferencePoint: reference,
		PlaceServed:    placeServed,
	}

	switch {
	case len(items) > 0:
		result.State = StateResults
	case !usingCurrent && geocodeState == GeocodePending:
		result.State = StatePending
	case !usingCurrent && geocodeState == GeocodeNotFound && textMatches == 0:
		result.State = StatePlaceNotFound
	default:
		result.State = StateNoMatches
	}

	return result
}

func stateFor(items []RankedLocation) SearchState {
	if len(items) > 0 {
		return StateResults
	}

	return StateNoMatches
}

func sortByDistance(items []RankedLocation) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DistanceKm != items[j].DistanceKm {
			return items[i].DistanceKm < items[j].DistanceKm
		}

		return strings.ToLower(items[i].SortLabel()) < strings.ToLower(items[j].SortLabel())
	})
}

func sortAlphabetically(items []RankedLocation) {
	sort.SliceStable(items, func(i, j int) bool {
		ci := strings.ToLower(items[i].SortLabel())
		cj := strings.ToLower(items[j].SortLabel())

		if ci != cj {
			return ci < cj
		}

		return strings.ToLower(items[i].Street()) < strings.ToLower(items[j].Street())
	})
}
