// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

// Package locations holds the canonical Location record, the feed
// normalization rules and the import pipeline that turns operator
// spreadsheets into a fully geocoded, servable location set.
package locations

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeLoose removes diacritics, lowercases and strips everything that
// is not a letter or digit. "Den Haag" and "den-haag" normalize identically.
func NormalizeLoose(s string) string {
	// Decompose and drop combining marks so that é, ë and e compare equal.
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)

	return nonAlnumRegex.ReplaceAllString(strings.ToLower(s), "")
}

var dutchPostcodeRegex = regexp.MustCompile(`^(\d{4})([A-Z]{2})$`)

// FormatDutchPostcode reformats a 4-digit/2-letter Dutch postcode as
// "NNNN AA". Anything else is returned trimmed and otherwise untouched.
func FormatDutchPostcode(s string) string {
	raw := strings.ToUpper(NormalizeLoose(s))

	m := dutchPostcodeRegex.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(s)
	}

	return m[1] + " " + m[2]
}

var (
	truthyTokens = map[string]bool{
		"1": true, "true": true, "yes": true, "ja": true, "open": true, "active": true,
	}
	falsyTokens = map[string]bool{
		"0": true, "false": true, "no": true, "nee": true, "closed": true, "inactive": true,
	}
)

// parseBool maps the fixed truthy/falsy vocabulary of the feeds onto a
// boolean. Blank or unrecognized values yield the caller's default.
func parseBool(v any, def bool) bool {
	switch b := v.(type) {
	case nil:
	case bool:
		return b
	default:
		s := strings.ToLower(strings.TrimSpace(asString(v)))
		if s == "" {
			return def
		}

		if truthyTokens[s] {
			return true
		}

		if falsyTokens[s] {
			return false
		}
	}

	return def
}

// parseNumber accepts both 52.09 and the Dutch decimal comma 52,09.
func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		s := strings.ReplaceAll(strings.TrimSpace(asString(v)), ",", ".")
		if s == "" {
			return 0, false
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	}
}

var productSeparators = regexp.MustCompile(`[|,;/]`)

// parseProducts splits a category column on the separators seen in the
// wild. An empty value falls back to the default assortment.
func parseProducts(v any) []string {
	if items, ok := v.([]any); ok {
		var ret []string

		for _, item := range items {
			if s := strings.TrimSpace(asString(item)); s != "" {
				ret = append(ret, s)
			}
		}

		if len(ret) > 0 {
			return ret
		}

		return defaultProducts()
	}

	raw := strings.TrimSpace(asString(v))
	if raw == "" {
		return defaultProducts()
	}

	var ret []string

	for _, part := range productSeparators.Split(raw, -1) {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}

	if len(ret) == 0 {
		return defaultProducts()
	}

	return ret
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if s {
			return "true"
		}

		return "false"
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}
