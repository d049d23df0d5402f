// Package gpx reads and writes the subset of GPX 1.1 used for route export
// and replay: one or more tracks of timestamped points.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"
)

// New returns an empty 1.1 document.
func New(creator string) *GPX {
	return &GPX{Version: "1.1", Creator: creator, XMLNS: Namespace}
}

// FormatTime renders t with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Parse reads the GPX file at path.
func Parse(path string) (*GPX, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gpx: %w", err)
	}
	defer file.Close()
	return ParseReader(file)
}

// ParseReader decodes a GPX document from r.
func ParseReader(r io.Reader) (*GPX, error) {
	var doc GPX
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	if doc.Version == "" {
		doc.Version = "1.1"
	}
	return &doc, nil
}

// WriteTo writes the document with an XML header and two-space indent.
func (g *GPX) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, xml.Header); err != nil {
		return cw.n, err
	}
	encoder := xml.NewEncoder(cw)
	encoder.Indent("", "  ")
	if err := encoder.Encode(g); err != nil {
		return cw.n, fmt.Errorf("encode gpx: %w", err)
	}
	if _, err := io.WriteString(cw, "\n"); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// FlattenPoints returns all points of all tracks and segments in order.
func (g *GPX) FlattenPoints() []Point {
	var points []Point
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}
	return points
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
