// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/quiosk/locator/spatial"
)

// SQLRepository stores the location set in DuckDB. Replace runs inside a
// transaction, so readers see either the previous set or the new one,
// never a mix.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository wraps an open DuckDB handle.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// DB returns the underlying database connection.
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// CreateSchema creates the locations table.
func (r *SQLRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension for POINT_2D
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			postcode VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			point POINT_2D NOT NULL,
			is_open BOOLEAN DEFAULT TRUE,
			environment VARCHAR NOT NULL,
			contactless BOOLEAN DEFAULT TRUE,
			products VARCHAR NOT NULL,
			h3_res7 UBIGINT
		);
	`)

	return err
}

func (r *SQLRepository) Load() ([]Location, error) {
	rows, err := r.db.Query(`
		SELECT id, title, name, city, postcode, address,
		       ST_AsText(point), is_open, environment, contactless, products
		FROM locations
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var ret []Location

	for rows.Next() {
		var (
			loc      Location
			point    spatial.Point
			pointWKT []byte
			products string
		)

		err := rows.Scan(
			&loc.ID, &loc.Title, &loc.Name, &loc.City, &loc.Postcode, &loc.Address,
			&pointWKT, &loc.IsOpen, &loc.Environment, &loc.Contactless, &products,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}

		if err := point.Scan(pointWKT); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}

		loc.Coords = &point
		loc.Products = strings.Split(products, "|")

		ret = append(ret, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ret, nil
}

func (r *SQLRepository) Replace(locations []Location) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM locations`); err != nil {
		return fmt.Errorf("clearing locations: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO locations (
			id, title, name, city, postcode, address,
			point, is_open, environment, contactless, products, h3_res7
		) VALUES (?, ?, ?, ?, ?, ?, ST_Point(?, ?), ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, loc := range locations {
		if loc.Coords == nil {
			return fmt.Errorf("location %d (%s) has no coordinates", loc.ID, loc.Name)
		}

		cell, err := spatial.CellRes7(*loc.Coords)
		if err != nil {
			return fmt.Errorf("location %d (%s): %w", loc.ID, loc.Name, err)
		}

		_, err = stmt.Exec(
			loc.ID, loc.Title, loc.Name, loc.City, loc.Postcode, loc.Address,
			loc.Coords.Lng, loc.Coords.Lat,
			loc.IsOpen, loc.Environment, loc.Contactless,
			strings.Join(loc.Products, "|"), cell,
		)
		if err != nil {
			return fmt.Errorf("inserting location %d: %w", loc.ID, err)
		}
	}

	return tx.Commit()
}

// AreaCount is the number of sites inside one H3 res-7 cell.
type AreaCount struct {
	Cell  uint64 `json:"cell"`
	Count int    `json:"count"`
}

// CountByArea groups the persisted locations per H3 res-7 cell, most
// populated areas first.
func (r *SQLRepository) CountByArea() ([]AreaCount, error) {
	rows, err := r.db.Query(`
		SELECT h3_res7, COUNT(*) AS n
		FROM locations
		GROUP BY h3_res7
		ORDER BY n DESC, h3_res7
	`)
	if err != nil {
		return nil, fmt.Errorf("querying area counts: %w", err)
	}
	defer rows.Close()

	var ret []AreaCount

	for rows.Next() {
		var ac AreaCount
		if err := rows.Scan(&ac.Cell, &ac.Count); err != nil {
			return nil, fmt.Errorf("scanning area count: %w", err)
		}

		ret = append(ret, ac)
	}

	return ret, rows.Err()
}
