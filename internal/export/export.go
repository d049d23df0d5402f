// Package export turns a timeline into portable artifacts: a JSON event
// array, a GPX track, a GeoJSON feature collection, a URL-safe share token,
// and a zipped browsable bundle.
//
// Every encoder validates its input before writing a single byte, so a
// failed export never leaves a partial artifact behind.
package export

import (
	"errors"

	"routekeeper/internal/timeline"
)

var (
	// ErrEmptyExportSource is returned when there is nothing to export.
	ErrEmptyExportSource = errors.New("nothing to export")
	// ErrInvalidShareToken is returned for malformed or truncated tokens.
	ErrInvalidShareToken = errors.New("invalid share token")
)

func requireEvents(events []timeline.Event) error {
	if len(events) == 0 {
		return ErrEmptyExportSource
	}
	return nil
}

func requireLocations(events []timeline.Event) ([]timeline.Event, error) {
	locs := timeline.Filter(events, timeline.KindLocation)
	if len(locs) == 0 {
		return nil, ErrEmptyExportSource
	}
	return locs, nil
}
