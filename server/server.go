// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the location feed and the import endpoint over
// HTTP.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/locations"
)

// FallbackSource supplies locations when the manual store is empty. The
// Business Profile listing implements it.
type FallbackSource interface {
	Fetch(ctx context.Context) ([]locations.Location, error)
}

// Options configure a Server beyond its storage and geocoder.
type Options struct {
	// ImportToken guards POST /api/import-locations. Empty disables the
	// endpoint.
	ImportToken string
	// AllowedOrigins whitelists browser origins for the import endpoint.
	// Empty allows any origin.
	AllowedOrigins []string
	// MapsAPIKey is handed to the frontend via /api/config.
	MapsAPIKey string
	// Fallback serves locations when the manual store is empty.
	Fallback FallbackSource
	// Stats enables /api/stats when the store can count per area.
	Stats AreaCounter
	// ImportWorkers overrides the pipeline worker count.
	ImportWorkers int
}

// AreaCounter is the per-area aggregation the SQL store provides.
type AreaCounter interface {
	CountByArea() ([]locations.AreaCount, error)
}

type Server struct {
	repo     locations.Repository
	geocoder geocode.Geocoder
	options  Options
	limiter  *clientLimiter
}

func NewServer(repo locations.Repository, geocoder geocode.Geocoder, options Options) *Server {
	if options.ImportToken == "" {
		log.Println("IMPORT_TOKEN is not set. The import endpoint is disabled.")
	}

	return &Server{
		repo:     repo,
		geocoder: geocoder,
		options:  options,
		limiter:  newClientLimiter(),
	}
}

// Router builds the gin engine. Split from Run so tests can drive it with
// httptest.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/locations", s.getLocations)
	r.GET("/api/health", s.getHealth)
	r.GET("/api/config", s.getConfig)
	r.GET("/api/import-template", s.getImportTemplate)
	r.POST("/api/import-locations", s.importLocations)

	if s.options.Stats != nil {
		r.GET("/api/stats", s.getStats)
	}

	return r
}

func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

type locationsResponse struct {
	Source    string               `json:"source"`
	Count     int                  `json:"count"`
	Locations []locations.Location `json:"locations"`
}

// getLocations serves the manual store when it holds anything, falls back
// to the Business Profile listing otherwise. Records without coordinates
// never leave the server.
func (s *Server) getLocations(ctx *gin.Context) {
	manual, err := s.repo.Load()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load locations"})

		return
	}

	servable := make([]locations.Location, 0, len(manual))

	for _, loc := range manual {
		if loc.Coords != nil {
			servable = append(servable, loc)
		}
	}

	if len(servable) > 0 {
		ctx.JSON(http.StatusOK, locationsResponse{
			Source:    "manual",
			Count:     len(servable),
			Locations: servable,
		})

		return
	}

	if s.options.Fallback == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "no location source configured",
		})

		return
	}

	fallback, err := s.options.Fallback.Fetch(ctx.Request.Context())
	if err != nil {
		log.Printf("Business profile fallback failed: %v", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to load locations"})

		return
	}

	ctx.JSON(http.StatusOK, locationsResponse{
		Source:    "business-profile",
		Count:     len(fallback),
		Locations: fallback,
	})
}

func (s *Server) getHealth(ctx *gin.Context) {
	manual, err := s.repo.Load()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"sourceConfigured": len(manual) > 0 || s.options.Fallback != nil,
		"manualCount":      len(manual),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"googleMapsApiKey": s.options.MapsAPIKey})
}

func (s *Server) getStats(ctx *gin.Context) {
	counts, err := s.options.Stats.CountByArea()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"areas": counts})
}

// ImportTemplateCSV is the sample CSV handed out so partners can fill in
// the expected columns.
const ImportTemplateCSV = `Title;Address;City;Postcode;IsOpen;Environment;Contactless;Products
Quiosk Centraal;Stationsplein 1;Utrecht;3511 ED;ja;Indoor;ja;Drinks|Snacks
Quiosk Park;Parkweg 12;Amersfoort;3812 AB;ja;Outdoor;ja;Drinks
`

func (s *Server) getImportTemplate(ctx *gin.Context) {
	ctx.Header("Content-Disposition", `attachment; filename="quiosk-import-template.csv"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(ImportTemplateCSV))
}
