package export

import (
	"bytes"
	"io"
	"time"

	"routekeeper/internal/gpx"
	"routekeeper/internal/timeline"
)

// GPXOptions names the document.
type GPXOptions struct {
	Creator string
	Name    string
}

// WriteGPX writes one track with one segment holding a trkpt per location
// event. Notes and attachments are omitted.
func WriteGPX(w io.Writer, events []timeline.Event, opts GPXOptions) error {
	locs, err := requireLocations(events)
	if err != nil {
		return err
	}
	creator := opts.Creator
	if creator == "" {
		creator = "routekeeper"
	}
	doc := gpx.New(creator)
	if opts.Name != "" {
		doc.Metadata = &gpx.Metadata{Name: opts.Name, Time: gpx.FormatTime(locs[0].Time())}
	}
	segment := gpx.TrackSegment{Points: make([]gpx.Point, 0, len(locs))}
	for _, ev := range locs {
		segment.Points = append(segment.Points, gpx.Point{
			Lat:  ev.Coords.Lat,
			Lon:  ev.Coords.Lng,
			Time: gpx.FormatTime(time.UnixMilli(ev.Timestamp)),
		})
	}
	doc.Tracks = []gpx.Track{{Name: opts.Name, Segments: []gpx.TrackSegment{segment}}}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
