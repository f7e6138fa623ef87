// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/quiosk/locator/spatial"
)

const (
	gbpBaseURL  = "https://mybusinessbusinessinformation.googleapis.com/v1"
	gbpScope    = "https://www.googleapis.com/auth/business.manage"
	gbpPageSize = 100
	gbpReadMask = "title,storefrontAddress,latlng,metadata"
)

// BusinessProfileConfig holds the OAuth2 refresh-token credentials for the
// Google Business Profile fallback source.
type BusinessProfileConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// AccountID is the numeric Business Profile account, without the
	// "accounts/" prefix.
	AccountID string
}

// Configured reports whether all four credentials are present.
func (c *BusinessProfileConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "" && c.AccountID != ""
}

// BusinessProfileSource lists the locations of a Business Profile account
// and maps them onto the canonical Location shape. It is the fallback
// feed when no manual import exists yet.
type BusinessProfileSource struct {
	config     BusinessProfileConfig
	baseURL    string
	httpClient *http.Client
}

// NewBusinessProfileSource builds a source from refresh-token credentials.
func NewBusinessProfileSource(ctx context.Context, config BusinessProfileConfig) *BusinessProfileSource {
	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gbpScope},
	}

	client := oauthConfig.Client(ctx, &oauth2.Token{RefreshToken: config.RefreshToken})
	client.Timeout = 30 * time.Second

	return &BusinessProfileSource{
		config:     config,
		baseURL:    gbpBaseURL,
		httpClient: client,
	}
}

type gbpAddress struct {
	AddressLines []string `json:"addressLines"`
	PostalCode   string   `json:"postalCode"`
	Locality     string   `json:"locality"`
}

type gbpLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type gbpLocation struct {
	Title             string      `json:"title"`
	StorefrontAddress *gbpAddress `json:"storefrontAddress"`
	LatLng            *gbpLatLng  `json:"latlng"`
}

type gbpListResponse struct {
	Locations     []gbpLocation `json:"locations"`
	NextPageToken string        `json:"nextPageToken"`
}

// Fetch lists every location of the configured account. Records without
// coordinates are dropped since the finder cannot place them.
func (s *BusinessProfileSource) Fetch(ctx context.Context) ([]Location, error) {
	var (
		ret       []Location
		pageToken string
	)

	for {
		page, err := s.listPage(ctx, pageToken)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Locations {
			loc, ok := mapBusinessProfileLocation(raw, len(ret)+1)
			if !ok {
				continue
			}

			ret = append(ret, loc)
		}

		if page.NextPageToken == "" {
			break
		}

		pageToken = page.NextPageToken
	}

	return ret, nil
}

func (s *BusinessProfileSource) listPage(ctx context.Context, pageToken string) (*gbpListResponse, error) {
	query := url.Values{}
	query.Set("readMask", gbpReadMask)
	query.Set("pageSize", fmt.Sprintf("%d", gbpPageSize))

	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/locations?%s",
		s.baseURL, url.PathEscape(s.config.AccountID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building business profile request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing business profile locations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading business profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing business profile locations: unexpected status %d", resp.StatusCode)
	}

	var page gbpListResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding business profile response: %w", err)
	}

	return &page, nil
}

func mapBusinessProfileLocation(raw gbpLocation, id int) (Location, bool) {
	if raw.LatLng == nil {
		return Location{}, false
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = fmt.Sprintf("Quiosk locatie %d", id)
	}

	loc := Location{
		ID:          id,
		Title:       title,
		Name:        title,
		IsOpen:      true,
		Environment: DefaultEnvironment,
		Contactless: true,
		Products:    defaultProducts(),
		Coords:      &spatial.Point{Lat: raw.LatLng.Latitude, Lng: raw.LatLng.Longitude},
	}

	if addr := raw.StorefrontAddress; addr != nil {
		loc.Address = strings.Join(addr.AddressLines, ", ")
		loc.Postcode = strings.TrimSpace(addr.PostalCode)
		loc.City = strings.TrimSpace(addr.Locality)
	}

	return loc, true
}
