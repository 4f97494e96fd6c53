// Package dates converts the heterogeneous date strings clients submit into
// one canonical storage form. Parsing is UTC-based throughout: a date-only
// input is a calendar date, not an instant, so the canonical value never
// depends on the host timezone.
package dates

import (
	"errors"
	"strings"
	"time"
)

// Canonical is the storage layout for every normalized date.
const Canonical = "2006-01-02 15:04:05"

// ErrUnparseable marks input no accepted layout matches. Callers store NULL
// for the field and log a warning; the error never aborts a save.
var ErrUnparseable = errors.New("unparseable date")

var isoLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// dd/mm/yyyy family, with "." and "-" separators folded to "/" first.
var dayFirstLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
}

// Normalize parses raw and returns it in the Canonical form. When keepTime
// is false the result is truncated to midnight of the same calendar day;
// when true the hour/minute/second survive. Same input and flag always yield
// the same output.
func Normalize(raw string, keepTime bool) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrUnparseable
	}

	parsed, err := parse(trimmed)
	if err != nil {
		return "", err
	}

	parsed = parsed.UTC()
	if !keepTime {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	}
	return parsed.Format(Canonical), nil
}

func parse(value string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, nil
		}
	}

	folded := strings.NewReplacer(".", "/", "-", "/").Replace(value)
	for _, layout := range dayFirstLayouts {
		if parsed, err := time.ParseInLocation(layout, folded, time.UTC); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, ErrUnparseable
}
