// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/locations"
)

var importOptions struct {
	dataFile string
	workers  int
	dryRun   bool
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CSV or JSON location feed into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading feed: %w", err)
		}

		repo := locations.NewFileRepository(importOptions.dataFile)
		geocoder := geocode.NewGoogleMapsGeocoder(geocode.ResolveAPIKey(ctx))

		options := locations.PipelineOptions{
			Workers: importOptions.workers,
			DryRun:  importOptions.dryRun,
		}

		var bar *progressbar.ProgressBar

		if isatty.IsTerminal(os.Stderr.Fd()) {
			options.Progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("geocoding"),
					)
				}

				_ = bar.Set(done)
			}
		}

		pipeline := locations.NewPipeline(repo, geocoder, options)

		var result *locations.ImportResult

		if strings.HasSuffix(strings.ToLower(args[0]), ".json") {
			result, err = pipeline.ImportJSON(ctx, body)
		} else {
			result, err = pipeline.ImportCSV(ctx, string(body))
		}

		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}

		if err != nil {
			return err
		}

		log.Printf("Imported %d locations: %d geocoded, %d reused, %d without coordinates",
			result.Imported, result.Geocoded, result.Reused, result.SkippedNoCoords)

		for kind, count := range result.ErrorCounts {
			log.Printf("  %s: %d", kind, count)
		}

		if importOptions.dryRun {
			log.Println("Dry run: nothing persisted")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.PersistentFlags().StringVar(
		&importOptions.dataFile,
		"data",
		"data/locations.json",
		"Path of the JSON location store",
	)
	importCmd.PersistentFlags().IntVar(
		&importOptions.workers,
		"workers",
		locations.DefaultWorkers,
		"Concurrent geocoding requests",
	)
	importCmd.PersistentFlags().BoolVar(
		&importOptions.dryRun,
		"dry-run",
		false,
		"Run the import without persisting anything",
	)
}
