package geo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the device reported no position.
	ErrUnavailable = errors.New("geolocation unavailable")
	// ErrDenied means the user refused location access.
	ErrDenied = errors.New("geolocation permission denied")
)

// Position is a device fix. Accuracy is in meters and may be unknown.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

// Locator produces the device position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

// Locate implements Locator.
func (f LocatorFunc) Locate(ctx context.Context) (Position, error) {
	return f(ctx)
}

// Acquire waits at most timeout for a position. Any failure yields nil: a punch
// without location is still a valid punch.
func Acquire(ctx context.Context, loc Locator, timeout time.Duration) *Position {
	if loc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pos, err := loc.Locate(ctx)
		ch <- result{pos: pos, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			if !errors.Is(res.err, ErrDenied) && !errors.Is(res.err, ErrUnavailable) {
				log.Printf("geo: locate failed: %v", res.err)
			}
			return nil
		}
		return &res.pos
	case <-ctx.Done():
		return nil
	}
}

// FormLocator reads the fix the page script attached to a punch form:
// lat, lon, accuracy and geo_error (set when the browser refused or timed out).
type FormLocator struct {
	values url.Values
}

// FromForm builds a FormLocator over parsed form values.
func FromForm(values url.Values) FormLocator {
	return FormLocator{values: values}
}

// Locate implements Locator.
func (f FormLocator) Locate(context.Context) (Position, error) {
	switch strings.TrimSpace(f.values.Get("geo_error")) {
	case "":
	case "denied", "1":
		return Position{}, ErrDenied
	default:
		return Position{}, ErrUnavailable
	}

	latRaw := strings.TrimSpace(f.values.Get("lat"))
	lonRaw := strings.TrimSpace(f.values.Get("lon"))
	if latRaw == "" || lonRaw == "" {
		return Position{}, ErrUnavailable
	}

	lat, err := parseCoordinate(latRaw, 90)
	if err != nil {
		return Position{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseCoordinate(lonRaw, 180)
	if err != nil {
		return Position{}, fmt.Errorf("longitude: %w", err)
	}

	pos := Position{Latitude: lat, Longitude: lon}
	if accRaw := strings.TrimSpace(f.values.Get("accuracy")); accRaw != "" {
		if acc, err := strconv.ParseFloat(accRaw, 64); err == nil && acc >= 0 && !math.IsInf(acc, 0) {
			pos.Accuracy = &acc
		}
	}
	return pos, nil
}

func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("%v out of range", v)
	}
	return v, nil
}
