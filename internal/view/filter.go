package view

import (
	"fmt"
	"strings"
	"time"
)

// isoLayout matches what browsers emit for Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Filter holds the raw date-range inputs exactly as the user typed them.
type Filter struct {
	Start string
	End   string
}

// bounds converts the inputs to ISO-8601 instants. Empty inputs stay empty and are
// left out of the query. Bare dates are UTC midnight; date-times use the display zone.
func (f Filter) bounds(loc *time.Location) (start, end string, err error) {
	if start, err = toISO(f.Start, loc); err != nil {
		return "", "", fmt.Errorf("start: %w", err)
	}
	if end, err = toISO(f.End, loc); err != nil {
		return "", "", fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

func toISO(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC().Format(isoLayout), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC().Format(isoLayout), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format(isoLayout), nil
	}
	return "", fmt.Errorf("invalid date %q", raw)
}
