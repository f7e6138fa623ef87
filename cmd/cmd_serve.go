// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/locations"
	"github.com/quiosk/locator/server"
)

var serveOptions struct {
	listen   string
	dataFile string
	dbPath   string
	workers  int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the locator HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		repo, stats, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		apiKey := geocode.ResolveAPIKey(ctx)
		if apiKey == "" {
			log.Println("No Google Maps API key available. Imports must carry coordinates.")
		}

		options := server.Options{
			ImportToken:   os.Getenv("IMPORT_TOKEN"),
			MapsAPIKey:    apiKey,
			Stats:         stats,
			ImportWorkers: serveOptions.workers,
		}

		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			for _, origin := range strings.Split(origins, ",") {
				if origin = strings.TrimSpace(origin); origin != "" {
					options.AllowedOrigins = append(options.AllowedOrigins, origin)
				}
			}
		}

		gbp := locations.BusinessProfileConfig{
			ClientID:     os.Getenv("GBP_CLIENT_ID"),
			ClientSecret: os.Getenv("GBP_CLIENT_SECRET"),
			RefreshToken: os.Getenv("GBP_REFRESH_TOKEN"),
			AccountID:    os.Getenv("GBP_ACCOUNT_ID"),
		}
		if gbp.Configured() {
			options.Fallback = locations.NewBusinessProfileSource(ctx, gbp)
			log.Println("Business Profile fallback source configured")
		}

		srv := server.NewServer(repo, geocode.NewGoogleMapsGeocoder(apiKey), options)

		log.Printf("Listening on %s", serveOptions.listen)

		return srv.Run(serveOptions.listen)
	},
}

// openStore picks the storage backend: DuckDB when --duckdb is set, a
// plain JSON file otherwise.
func openStore() (locations.Repository, server.AreaCounter, func(), error) {
	if serveOptions.dbPath == "" {
		return locations.NewFileRepository(serveOptions.dataFile), nil, func() {}, nil
	}

	db, err := sql.Open("duckdb", serveOptions.dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := locations.NewSQLRepository(db)
	if err := repo.CreateSchema(); err != nil {
		_ = db.Close()

		return nil, nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return repo, repo, func() { _ = db.Close() }, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.PersistentFlags().StringVar(
		&serveOptions.listen,
		"listen",
		"localhost:8080",
		"Address to listen on",
	)
	serveCmd.PersistentFlags().StringVar(
		&serveOptions.dataFile,
		"data",
		"data/locations.json",
		"Path of the JSON location store",
	)
	serveCmd.PersistentFlags().StringVar(
		&serveOptions.dbPath,
		"duckdb",
		"",
		"Use a DuckDB store at this path instead of the JSON file",
	)
	serveCmd.PersistentFlags().IntVar(
		&serveOptions.workers,
		"workers",
		locations.DefaultWorkers,
		"Concurrent geocoding requests during an import",
	)
}
