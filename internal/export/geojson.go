package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"routekeeper/internal/timeline"
)

// GeoJSON builds a feature collection: the path as a LineString (a Point
// when only one fix exists) followed by one Point per annotation.
func GeoJSON(events []timeline.Event, name string, distanceKm float64) (*geojson.FeatureCollection, error) {
	locs, err := requireLocations(events)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()

	var pathGeom orb.Geometry
	if len(locs) == 1 {
		pathGeom = toOrb(locs[0])
	} else {
		line := make(orb.LineString, 0, len(locs))
		for _, ev := range locs {
			line = append(line, toOrb(ev))
		}
		pathGeom = line
	}
	path := geojson.NewFeature(pathGeom)
	path.Properties["kind"] = "path"
	path.Properties["distanceKm"] = distanceKm
	path.Properties["start"] = locs[0].Timestamp
	path.Properties["end"] = locs[len(locs)-1].Timestamp
	if name != "" {
		path.Properties["name"] = name
	}
	fc.Append(path)

	for _, ev := range events {
		if ev.Kind == timeline.KindLocation {
			continue
		}
		marker := geojson.NewFeature(toOrb(ev))
		marker.Properties["kind"] = string(ev.Kind)
		marker.Properties["timestamp"] = ev.Timestamp
		if ev.Kind == timeline.KindNote {
			marker.Properties["text"] = ev.Text
		}
		fc.Append(marker)
	}
	return fc, nil
}

// WriteGeoJSON writes GeoJSON output, indented.
func WriteGeoJSON(w io.Writer, events []timeline.Event, name string, distanceKm float64) error {
	fc, err := GeoJSON(events, name, distanceKm)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}

func toOrb(ev timeline.Event) orb.Point {
	return orb.Point{ev.Coords.Lng, ev.Coords.Lat}
}
