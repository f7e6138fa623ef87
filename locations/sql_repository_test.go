// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiosk/locator/spatial"
)

func setupSQLRepository(t *testing.T) *SQLRepository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func TestSQLRepositoryRoundTrip(t *testing.T) {
	repo := setupSQLRepository(t)

	require.NoError(t, repo.Replace(testLocations()))

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, testLocations(), loaded)
}

func TestSQLRepositoryReplaceIsFull(t *testing.T) {
	repo := setupSQLRepository(t)

	require.NoError(t, repo.Replace(testLocations()))
	require.NoError(t, repo.Replace(testLocations()[1:2]))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Quiosk Park", loaded[0].Name)
}

func TestSQLRepositoryRejectsCoordlessLocations(t *testing.T) {
	repo := setupSQLRepository(t)

	err := repo.Replace([]Location{{ID: 1, Title: "x", Name: "x", Environment: EnvironmentOutdoor, Products: []string{"Drinks"}}})
	require.Error(t, err)

	// The failed batch must not have wiped the table.
	require.NoError(t, repo.Replace(testLocations()))

	err = repo.Replace([]Location{{ID: 1, Title: "x", Name: "x", Environment: EnvironmentOutdoor, Products: []string{"Drinks"}}})
	require.Error(t, err)

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSQLRepositoryCountByArea(t *testing.T) {
	repo := setupSQLRepository(t)

	locs := testLocations()
	// Two sites a few meters apart share an H3 res-7 cell.
	extra := locs[0]
	extra.ID = 3
	extra.Name = "Quiosk Centraal II"
	extra.Coords = &spatial.Point{Lat: 52.0895, Lng: 5.1101}
	locs = append(locs, extra)

	require.NoError(t, repo.Replace(locs))

	counts, err := repo.CountByArea()
	require.NoError(t, err)
	require.Len(t, counts, 2)

	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, 1, counts[1].Count)
}
