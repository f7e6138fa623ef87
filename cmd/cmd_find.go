// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quiosk/locator/finder"
	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/spatial"
)

var findOptions struct {
	feedURL  string
	radiusKm float64
	lat      float64
	lng      float64
	cacheDir string
	redis    string
}

var findCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Search the servable location set like the store finder does",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		client := finder.NewClient(findOptions.feedURL, finder.ClientOptions{
			Cache: findResultCache(),
		})

		snapshot, err := client.LoadAllowStale(ctx)
		if err != nil {
			return err
		}

		if snapshot.Stale {
			log.Printf("using a stale cached snapshot while the feed refreshes")
		}

		if snapshot.Stale {
			log.Println("Feed unreachable, showing the cached snapshot")
		}

		geocache := finder.NewGeocodeCache(
			geocode.NewGoogleMapsGeocoder(geocode.ResolveAPIKey(ctx)),
			finder.GeocodeCacheOptions{},
		)

		engine := finder.NewEngine(snapshot.Locations, geocache)

		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			engine.UseCurrentLocation(spatial.Point{Lat: findOptions.lat, Lng: findOptions.lng})
		}

		result := engine.Search(ctx, query, findOptions.radiusKm)

		// The engine never blocks on the geocoder; wait the query out here.
		for deadline := time.Now().Add(5 * time.Second); result.State == finder.StatePending; {
			if time.Now().After(deadline) {
				break
			}

			time.Sleep(100 * time.Millisecond)
			result = engine.Search(ctx, query, findOptions.radiusKm)
		}

		return printSearchResult(result)
	},
}

func findResultCache() *finder.ResultCache {
	if findOptions.redis != "" {
		client := redis.NewClient(&redis.Options{Addr: findOptions.redis})

		return finder.NewResultCache(finder.NewRedisStorage(client), 0)
	}

	return finder.NewResultCache(finder.NewFileStorage(findOptions.cacheDir), 0)
}

func printSearchResult(result finder.Result) error {
	switch result.State {
	case finder.StatePending:
		fmt.Println("The place lookup did not finish in time. Try again.")

		return nil
	case finder.StatePlaceNotFound:
		fmt.Println("That place could not be found.")

		return nil
	case finder.StateNoMatches:
		if result.PlaceServed {
			fmt.Println("No locations within these filters.")
		} else {
			fmt.Println("No Quiosk there yet.")
		}

		return nil
	}

	for _, item := range result.Items {
		line := fmt.Sprintf("%-24s %-16s %s", item.Name, item.DisplayCity(), item.Street())
		if result.ReferencePoint != nil {
			line = fmt.Sprintf("%5.1f km  %s", item.DistanceKm, line)
		}

		if !item.IsOpen {
			line += "  (gesloten)"
		}

		fmt.Println(strings.TrimRight(line, " "))
	}

	return nil
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.PersistentFlags().StringVar(
		&findOptions.feedURL,
		"feed",
		"http://localhost:8080/api/locations",
		"Location feed URL",
	)
	findCmd.PersistentFlags().Float64Var(
		&findOptions.radiusKm,
		"radius",
		0,
		"Only show locations within this many kilometers",
	)
	findCmd.PersistentFlags().Float64Var(
		&findOptions.lat,
		"lat",
		0,
		"Current latitude, used as the reference point",
	)
	findCmd.PersistentFlags().Float64Var(
		&findOptions.lng,
		"lng",
		0,
		"Current longitude, used as the reference point",
	)
	findCmd.PersistentFlags().StringVar(
		&findOptions.cacheDir,
		"cache-dir",
		filepath.Join(os.TempDir(), "quiosk-finder"),
		"Directory for the snapshot cache",
	)
	findCmd.PersistentFlags().StringVar(
		&findOptions.redis,
		"redis",
		"",
		"Redis address for a shared snapshot cache instead of the file cache",
	)
}
