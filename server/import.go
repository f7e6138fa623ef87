// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/quiosk/locator/geocode"
	"github.com/quiosk/locator/locations"
)

// Import requests are rare (a partner uploading a sheet), so the per-IP
// budget is deliberately tight.
const (
	importRateLimit = rate.Limit(0.2)
	importBurst     = 3
	maxImportBody   = 8 << 20
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newClientLimiter() *clientLimiter {
	return &clientLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *clientLimiter) allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(importRateLimit, importBurst)
		l.limiters[clientIP] = limiter
	}

	return limiter.Allow()
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" || len(s.options.AllowedOrigins) == 0 {
		return true
	}

	for _, allowed := range s.options.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}

	return false
}

// importLocations replaces the manual store from an uploaded CSV or JSON
// body. The endpoint is gated by a shared token, an origin whitelist and
// a per-IP rate limit.
func (s *Server) importLocations(ctx *gin.Context) {
	if s.options.ImportToken == "" {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "import is not configured"})

		return
	}

	token := ctx.GetHeader("X-Import-Token")
	if token == "" {
		token = ctx.Query("token")
	}

	if token != s.options.ImportToken {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid import token"})

		return
	}

	if !s.originAllowed(ctx.GetHeader("Origin")) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})

		return
	}

	if !s.limiter.allow(ctx.ClientIP()) {
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": "too many import requests"})

		return
	}

	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxImportBody))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})

		return
	}

	pipeline := locations.NewPipeline(s.repo, s.geocoder, locations.PipelineOptions{
		Workers: s.options.ImportWorkers,
	})

	var result *locations.ImportResult

	if isCSVImport(ctx.ContentType(), body) {
		result, err = pipeline.ImportCSV(ctx.Request.Context(), string(body))
	} else {
		result, err = pipeline.ImportJSON(ctx.Request.Context(), body)
	}

	if err != nil {
		s.importError(ctx, err)

		return
	}

	if result.Imported == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "no valid locations in upload",
			"hint":  "check the column headers against /api/import-template",
		})

		return
	}

	log.Printf("Imported %d locations (%d geocoded, %d reused, %d without coordinates)",
		result.Imported, result.Geocoded, result.Reused, result.SkippedNoCoords)

	ctx.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"imported":        result.Imported,
		"geocodedCount":   result.Geocoded,
		"reusedCount":     result.Reused,
		"skippedNoCoords": result.SkippedNoCoords,
		"geocodeErrors":   result.ErrorCounts,
	})
}

func (s *Server) importError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, geocode.ErrMissingAPIKey):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "geocoding is not configured",
			"hint":  "set GOOGLE_MAPS_API_KEY or provide coordinates in the upload",
		})
	case errors.Is(err, locations.ErrNoRows):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "upload contains no data rows",
			"hint":  "check the file against /api/import-template",
		})
	default:
		log.Printf("Import failed: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// isCSVImport sniffs the body when the content type is ambiguous: browser
// uploads sometimes arrive as text/plain or octet-stream.
func isCSVImport(contentType string, body []byte) bool {
	if strings.Contains(contentType, "csv") {
		return true
	}

	if strings.Contains(contentType, "json") {
		return false
	}

	trimmed := strings.TrimLeft(string(body), " \t\r\n\ufeff")

	return !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{")
}
