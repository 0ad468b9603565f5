package view

import (
	"strconv"
	"time"

	"github.com/hongminglow/punchclock/internal/models"
)

// pt-BR short date + medium time, e.g. 15/01/2024, 10:30:00.
const displayLayout = "02/01/2006, 15:04:05"

// Formatter renders timestamps in one fixed zone regardless of the viewer.
type Formatter struct {
	loc *time.Location
}

// NewFormatter returns a formatter for loc; nil means UTC.
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{loc: loc}
}

// Time formats t in the fixed zone.
func (f Formatter) Time(t time.Time) string {
	return t.In(f.loc).Format(displayLayout)
}

// Location returns the display zone.
func (f Formatter) Location() *time.Location {
	return f.loc
}

func formatCoords(p models.Punch) string {
	if !p.Geotagged() {
		return ""
	}
	return "(" + formatFloat(*p.Latitude) + ", " + formatFloat(*p.Longitude) + ")"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
