// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"errors"
	"strings"
)

// ErrNoRows is returned when a CSV body contains no data rows at all.
var ErrNoRows = errors.New("csv contains no rows")

// detectDelimiter picks ';' over ',' when the header line contains more
// semicolons than commas. Dutch spreadsheets export with semicolons more
// often than not.
func detectDelimiter(text string) rune {
	firstLine := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		firstLine = text[:idx]
	}

	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}

	return ','
}

// parseCSVRows splits raw CSV text into rows of fields. Quoting follows
// RFC 4180: doubled quotes escape an embedded quote and newlines inside a
// quoted field do not terminate the row. Rows whose every cell is blank are
// dropped. A UTF-8 BOM on the first byte is ignored.
func parseCSVRows(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")
	delimiter := detectDelimiter(text)

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	pushField := func() {
		row = append(row, field.String())
		field.Reset()
	}

	pushRow := func() {
		pushField()

		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				rows = append(rows, row)

				break
			}
		}

		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '"' {
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}

			continue
		}

		if !inQuotes && ch == delimiter {
			pushField()

			continue
		}

		if !inQuotes && (ch == '\n' || ch == '\r') {
			if ch == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}

			pushRow()

			continue
		}

		field.WriteRune(ch)
	}

	pushRow()

	return rows
}

// ParseCSV turns raw CSV text into field maps keyed by loosely normalized
// header names. When a header occurs twice the first column wins. Short
// rows simply lack the trailing fields.
func ParseCSV(text string) ([]map[string]any, error) {
	rows := parseCSVRows(text)
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = NormalizeLoose(h)
	}

	ret := make([]map[string]any, 0, len(rows)-1)

	for _, row := range rows[1:] {
		fields := make(map[string]any, len(headers))

		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}

			if _, exists := fields[header]; !exists {
				fields[header] = row[i]
			}
		}

		ret = append(ret, fields)
	}

	return ret, nil
}
