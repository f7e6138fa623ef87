// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quiosk/locator/spatial"
)

// Environment values a site can have.
const (
	EnvironmentIndoor  = "Indoor"
	EnvironmentOutdoor = "Outdoor"
)

// DefaultEnvironment is applied when a feed does not say otherwise. The
// source data alternated between Indoor and Outdoor defaults; the live
// finder treats everything that is not explicitly Indoor as Outdoor, so
// Outdoor it is.
const DefaultEnvironment = EnvironmentOutdoor

func defaultProducts() []string {
	return []string{"Drinks", "Snacks"}
}

// Location is one vending-machine site. Coords is nil while the record has
// not (or could not) be geocoded; such records are never part of the
// servable set.
type Location struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Name        string         `json:"name"`
	City        string         `json:"city"`
	Postcode    string         `json:"postcode"`
	Address     string         `json:"address"`
	Coords      *spatial.Point `json:"coords"`
	IsOpen      bool           `json:"isOpen"`
	Environment string         `json:"environment"`
	Contactless bool           `json:"contactless"`
	Products    []string       `json:"products"`
}

// Street returns the street part of the address, i.e. everything before the
// first comma.
func (l *Location) Street() string {
	parts := splitAddressParts(l.Address)
	if len(parts) > 0 {
		return parts[0]
	}

	return strings.TrimSpace(l.Address)
}

var postcodeCityRegex = regexp.MustCompile(`\b\d{4}\s*[A-Za-z]{2}\s+(.+)$`)

// DisplayCity returns the best city label available: the explicit city
// field, else the city hiding behind a postcode inside the address
// ("Stationsplein 1, 3511 ED Utrecht"), else a trailing address part that
// looks like a place name.
func (l *Location) DisplayCity() string {
	if city := strings.TrimSpace(l.City); city != "" {
		return city
	}

	parts := splitAddressParts(l.Address)
	if len(parts) == 0 {
		return ""
	}

	for _, part := range parts {
		if m := postcodeCityRegex.FindStringSubmatch(part); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	if len(parts) >= 2 {
		tail := parts[len(parts)-1]
		if !strings.EqualFold(tail, parts[0]) && !strings.ContainsAny(tail, "0123456789") {
			return tail
		}
	}

	return ""
}

// SortLabel is the label locations sort under when no reference point is
// available.
func (l *Location) SortLabel() string {
	if city := l.DisplayCity(); city != "" {
		return city
	}

	if street := l.Street(); street != "" {
		return street
	}

	return l.Name
}

// GeocodeQuery builds the free-text query sent to the geocoding provider.
func (l *Location) GeocodeQuery() string {
	regionLine := strings.TrimSpace(FormatDutchPostcode(l.Postcode) + " " + l.City)

	var parts []string

	for _, part := range []string{strings.TrimSpace(l.Address), regionLine, "Nederland"} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, ", ")
}

func splitAddressParts(address string) []string {
	var ret []string

	for _, part := range strings.Split(address, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}

	return ret
}

// Header aliases recognized in feeds, Dutch and English, matched after
// loose normalization. Unknown headers are ignored.
var fieldAliases = map[string][]string{
	"title":       {"title", "name", "locationname", "businessname", "bedrijfsnaam"},
	"address":     {"address", "address1", "street", "straat", "addressline1", "adres"},
	"address2":    {"address2", "addressline2"},
	"city":        {"city", "locality", "town", "plaats", "buurt"},
	"postcode":    {"postcode", "postalcode", "zipcode"},
	"lat":         {"lat", "latitude", "breedtegraad"},
	"lng":         {"lng", "lon", "longitude", "lengtegraad"},
	"isopen":      {"isopen", "open", "openstatus"},
	"status":      {"status"},
	"environment": {"environment", "type", "omgeving"},
	"contactless": {"contactless", "contactloos"},
	"products":    {"products", "assortment", "meercategorieen"},
}

func pickField(fields map[string]any, canonical string) any {
	for _, alias := range fieldAliases[canonical] {
		if v, ok := fields[alias]; ok {
			if s, isStr := v.(string); isStr {
				if strings.TrimSpace(s) == "" {
					continue
				}

				return strings.TrimSpace(s)
			}

			if v != nil {
				return v
			}
		}
	}

	return nil
}

func pickString(fields map[string]any, canonical string) string {
	return strings.TrimSpace(asString(pickField(fields, canonical)))
}

// IsPublished reports whether a record passed the publication gate. Rows
// without a status column are published; rows with one must mention
// "gepubliceerd" or "published".
func IsPublished(fields map[string]any) bool {
	v, ok := fields["status"]
	if !ok {
		return true
	}

	status := NormalizeLoose(asString(v))
	if status == "" {
		return true
	}

	return strings.Contains(status, "gepubliceerd") || strings.Contains(status, "published")
}

// HasKnownFields reports whether a row carries at least one recognized,
// non-blank column. Rows without any are unusable: they would otherwise
// geocode against an empty address.
func HasKnownFields(fields map[string]any) bool {
	for canonical := range fieldAliases {
		if pickField(fields, canonical) != nil {
			return true
		}
	}

	return false
}

// NormalizeRecord maps one feed row, keyed by loosely normalized header
// names, onto a canonical Location. The index is 1-based and only used for
// the generated fallback title.
func NormalizeRecord(fields map[string]any, index int) Location {
	title := pickString(fields, "title")
	if title == "" {
		title = fmt.Sprintf("Quiosk locatie %d", index)
	}

	address := pickString(fields, "address")
	if address2 := pickString(fields, "address2"); address2 != "" {
		if address != "" {
			address += ", " + address2
		} else {
			address = address2
		}
	}

	environment := pickString(fields, "environment")
	if environment != EnvironmentIndoor && environment != EnvironmentOutdoor {
		environment = DefaultEnvironment
	}

	loc := Location{
		Title:       title,
		Name:        title,
		City:        pickString(fields, "city"),
		Postcode:    pickString(fields, "postcode"),
		Address:     address,
		IsOpen:      parseBool(pickField(fields, "isopen"), true),
		Environment: environment,
		Contactless: parseBool(pickField(fields, "contactless"), true),
		Products:    parseProducts(pickField(fields, "products")),
	}

	lat, okLat := parseNumber(pickField(fields, "lat"))
	lng, okLng := parseNumber(pickField(fields, "lng"))

	// Implausible coordinates are treated as absent, so the row goes
	// through geocoding instead of placing a site in the North Sea.
	if okLat && okLng && spatial.ValidateCoordinates(lat, lng) == nil {
		loc.Coords = &spatial.Point{Lat: lat, Lng: lng}
	}

	return loc
}

// NormalizeKeys rewrites a decoded JSON object so its keys match the loose
// form the alias table is written in. A nested {coords: {lat, lng}} object
// is flattened.
func NormalizeKeys(record map[string]any) map[string]any {
	ret := make(map[string]any, len(record))

	for k, v := range record {
		nk := NormalizeLoose(k)
		if nk == "" {
			continue
		}

		if nk == "coords" {
			if coords, ok := v.(map[string]any); ok {
				if lat, ok := coords["lat"]; ok {
					ret["lat"] = lat
				}

				if lng, ok := coords["lng"]; ok {
					ret["lng"] = lng
				}
			}

			continue
		}

		if _, exists := ret[nk]; !exists {
			ret[nk] = v
		}
	}

	return ret
}

// ReuseKey is the composite key the import pipeline uses to recycle
// coordinates from a previous run when an address has not changed.
func (l *Location) ReuseKey() string {
	return strings.Join([]string{
		NormalizeLoose(l.Address),
		NormalizeLoose(l.Postcode),
		NormalizeLoose(l.City),
		NormalizeLoose(l.Name),
	}, "|")
}
