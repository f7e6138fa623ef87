// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quiosk/locator/geocode"
)

// ErrorKind aggregates per-row failures in an ImportResult.
type ErrorKind string

const (
	// ErrorKindParse is a malformed input row, skipped without aborting
	// the run.
	ErrorKindParse ErrorKind = "ParseError"
	// ErrorKindGeocodeNotFound means the provider had no candidate for
	// the row's address.
	ErrorKindGeocodeNotFound ErrorKind = "GeocodeNotFound"
	// ErrorKindGeocodeProvider is a network or HTTP level geocoding
	// failure.
	ErrorKindGeocodeProvider ErrorKind = "GeocodeProviderError"
)

// ImportResult summarizes one import run. It is returned to the operator
// and never persisted.
type ImportResult struct {
	Imported        int               `json:"imported"`
	Geocoded        int               `json:"geocodedCount"`
	Reused          int               `json:"reusedCount"`
	SkippedNoCoords int               `json:"skippedNoCoords"`
	ErrorCounts     map[ErrorKind]int `json:"geocodeErrors,omitempty"`
}

// DefaultWorkers is the width of the geocoding worker pool when none is
// configured.
const DefaultWorkers = 6

// PipelineOptions tune an import run.
type PipelineOptions struct {
	// Workers is the geocoding pool width, at least 1.
	Workers int
	// DryRun processes the batch but does not persist anything.
	DryRun bool
	// Progress, when set, is called after every resolved record.
	Progress func(done, total int)
}

// Pipeline turns a batch of raw feed rows into the persisted, fully
// geocoded Location set. A run is a full replace: the previous set is only
// overwritten once the whole batch has been processed.
type Pipeline struct {
	repo     Repository
	geocoder geocode.Geocoder
	options  PipelineOptions
}

// NewPipeline assembles an import pipeline.
func NewPipeline(repo Repository, geocoder geocode.Geocoder, options PipelineOptions) *Pipeline {
	if options.Workers < 1 {
		options.Workers = DefaultWorkers
	}

	return &Pipeline{repo: repo, geocoder: geocoder, options: options}
}

// ImportCSV parses CSV text and runs the import.
func (p *Pipeline) ImportCSV(ctx context.Context, text string) (*ImportResult, error) {
	rows, err := ParseCSV(text)
	if err != nil {
		return nil, err
	}

	return p.Run(ctx, rows)
}

// jsonPayload is the JSON import body: {"locations": [...]} or a bare
// array.
type jsonPayload struct {
	Locations []json.RawMessage `json:"locations"`
}

// ImportJSON decodes a JSON import body and runs the import. Entries that
// are not objects count as parse errors and are skipped.
func (p *Pipeline) ImportJSON(ctx context.Context, body []byte) (*ImportResult, error) {
	var raw []json.RawMessage

	if err := json.Unmarshal(body, &raw); err != nil {
		var payload jsonPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decoding import payload: %w", err)
		}

		raw = payload.Locations
	}

	rows := make([]map[string]any, 0, len(raw))
	parseErrors := 0

	for _, entry := range raw {
		var record map[string]any
		if err := json.Unmarshal(entry, &record); err != nil {
			parseErrors++

			continue
		}

		rows = append(rows, NormalizeKeys(record))
	}

	result, err := p.Run(ctx, rows)
	if err != nil {
		return result, err
	}

	for i := 0; i < parseErrors; i++ {
		result.countError(ErrorKindParse)
	}

	return result, nil
}

func (r *ImportResult) countError(kind ErrorKind) {
	if r.ErrorCounts == nil {
		r.ErrorCounts = make(map[ErrorKind]int)
	}

	r.ErrorCounts[kind]++
}

// Run executes the import state machine: normalize, resolve coordinates,
// drop unresolvable rows, persist atomically. Rows are field maps keyed by
// loosely normalized header names. Per-row failures never abort the batch;
// a missing API key or a persistence failure does, leaving the previous
// set untouched.
func (p *Pipeline) Run(ctx context.Context, rows []map[string]any) (*ImportResult, error) {
	result := &ImportResult{}

	// Unpublished rows are dropped before normalization and appear in no
	// counter at all.
	records := make([]Location, 0, len(rows))

	for _, fields := range rows {
		if !IsPublished(fields) {
			continue
		}

		if !HasKnownFields(fields) {
			result.countError(ErrorKindParse)

			continue
		}

		records = append(records, NormalizeRecord(fields, len(records)+1))
	}

	previous, err := p.repo.Load()
	if err != nil {
		return nil, fmt.Errorf("loading previous location set: %w", err)
	}

	reuse := make(map[string]Location, len(previous))

	for _, loc := range previous {
		if loc.Coords != nil {
			reuse[loc.ReuseKey()] = loc
		}
	}

	// Cheap resolution first: recycle coordinates from the previous run
	// for rows whose address did not change, so a re-import of the same
	// spreadsheet never spends geocoding quota.
	var pending []int

	for i := range records {
		if records[i].Coords != nil {
			continue
		}

		if prev, ok := reuse[records[i].ReuseKey()]; ok {
			coords := *prev.Coords
			records[i].Coords = &coords
			result.Reused++

			continue
		}

		pending = append(pending, i)
	}

	if err := p.resolvePending(ctx, records, pending, result); err != nil {
		return result, err
	}

	// Rows that still lack coordinates are dropped, not persisted as
	// placeholders.
	final := make([]Location, 0, len(records))

	for i := range records {
		if records[i].Coords == nil {
			result.SkippedNoCoords++

			continue
		}

		records[i].ID = len(final) + 1
		final = append(final, records[i])
	}

	result.Imported = len(final)

	if p.options.DryRun {
		return result, nil
	}

	if err := p.repo.Replace(final); err != nil {
		return result, fmt.Errorf("persisting location set: %w", err)
	}

	return result, nil
}

// resolvePending geocodes the given record indices under a fixed-width
// worker pool. Workers pull the next index from a shared atomic cursor, so
// no index is ever processed twice; shared counters are guarded by a
// mutex.
func (p *Pipeline) resolvePending(ctx context.Context, records []Location, pending []int, result *ImportResult) error {
	if len(pending) == 0 {
		return nil
	}

	var (
		cursor     atomic.Int64
		mu         sync.Mutex
		wg         sync.WaitGroup
		done       int
		missingKey atomic.Bool
	)

	for w := 0; w < p.options.Workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(pending) || missingKey.Load() || ctx.Err() != nil {
					return
				}

				record := &records[pending[i]]
				res, err := p.geocoder.Geocode(ctx, record.GeocodeQuery())

				mu.Lock()
				switch {
				case err == nil:
					record.Coords = &res.Point
					result.Geocoded++
				case errors.Is(err, geocode.ErrMissingAPIKey):
					missingKey.Store(true)
				case geocode.IsNotFound(err):
					result.countError(ErrorKindGeocodeNotFound)
				default:
					result.countError(ErrorKindGeocodeProvider)
				}

				done++
				if p.options.Progress != nil {
					p.options.Progress(done, len(pending))
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if missingKey.Load() {
		return geocode.ErrMissingAPIKey
	}

	return ctx.Err()
}
