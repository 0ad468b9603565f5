package view

import (
	"encoding/json"

	"github.com/hongminglow/punchclock/internal/models"
)

const (
	// MaxMarkers caps the markers drawn after each refresh.
	MaxMarkers = 10

	defaultZoom = 10
	focusZoom   = 13
)

// DefaultCenter is where a fresh map looks before any geotagged punch arrives.
var DefaultCenter = LatLng{Lat: -23.55, Lng: -46.63}

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is one pin with its popup text.
type Marker struct {
	Position LatLng `json:"position"`
	Popup    string `json:"popup"`
}

// MapView is the server-side model of the page map. It is created once per browser
// session; its markers are rebuilt in full on every refresh.
type MapView struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	Markers []Marker `json:"markers"`
}

func newMapView() *MapView {
	return &MapView{Center: DefaultCenter, Zoom: defaultZoom}
}

// JSON is the payload the page script reads to draw the map.
func (m MapView) JSON() string {
	if m.Markers == nil {
		m.Markers = []Marker{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (m *MapView) clone() MapView {
	c := *m
	c.Markers = append([]Marker(nil), m.Markers...)
	return c
}

// rebuild replaces every marker with the newest geotagged punches and centers the
// map on the most recent one. punches are newest first.
func (m *MapView) rebuild(punches []models.Punch, format Formatter) {
	m.Markers = m.Markers[:0:0]
	for _, p := range punches {
		if len(m.Markers) == MaxMarkers {
			break
		}
		if !p.Geotagged() {
			continue
		}
		m.Markers = append(m.Markers, Marker{
			Position: LatLng{Lat: *p.Latitude, Lng: *p.Longitude},
			Popup:    p.Type + " — " + format.Time(p.OccurredAt),
		})
	}
	if len(m.Markers) > 0 {
		m.Center = m.Markers[0].Position
		m.Zoom = focusZoom
	}
}
