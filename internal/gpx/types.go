package gpx

import (
	"encoding/xml"
	"time"
)

// Namespace is the GPX 1.1 schema namespace.
const Namespace = "http://www.topografix.com/GPX/1/1"

// TimeLayout renders trkpt times as UTC ISO-8601 with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Point is a track point. Time is kept as text so the millisecond layout
// survives a round trip.
type Point struct {
	Lat       float64  `xml:"lat,attr"`
	Lon       float64  `xml:"lon,attr"`
	Elevation *float64 `xml:"ele,omitempty"`
	Time      string   `xml:"time,omitempty"`
}

// ParsedTime returns the point time, accepting any RFC3339 precision.
func (p Point) ParsedTime() (time.Time, bool) {
	if p.Time == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, p.Time)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TrackSegment is a contiguous run of points.
type TrackSegment struct {
	Points []Point `xml:"trkpt"`
}

// Track is a named list of segments.
type Track struct {
	Name     string         `xml:"name,omitempty"`
	Segments []TrackSegment `xml:"trkseg"`
}

// Metadata describes the document.
type Metadata struct {
	Name string `xml:"name,omitempty"`
	Time string `xml:"time,omitempty"`
}

// GPX is the document root.
type GPX struct {
	XMLName  xml.Name  `xml:"gpx"`
	Version  string    `xml:"version,attr"`
	Creator  string    `xml:"creator,attr"`
	XMLNS    string    `xml:"xmlns,attr,omitempty"`
	Metadata *Metadata `xml:"metadata,omitempty"`
	Tracks   []Track   `xml:"trk"`
}
