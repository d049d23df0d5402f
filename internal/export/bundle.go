package export

import (
	"archive/zip"
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"routekeeper/internal/logging"
	"routekeeper/internal/sessions"
	"routekeeper/internal/stopwatch"
	"routekeeper/internal/timeline"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var bundleTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// BundleItem is one route to include in a bundle.
type BundleItem struct {
	Name     string
	SavedAt  time.Time
	Timeline timeline.Timeline
}

// ItemFromSession adapts a saved session.
func ItemFromSession(s sessions.Session) BundleItem {
	return BundleItem{Name: s.Name, SavedAt: s.SavedTime(), Timeline: s.Timeline()}
}

// BundleOptions tunes WriteBundle.
type BundleOptions struct {
	Title      string
	GPXCreator string
	// Now stamps archive entries when an item has no SavedAt.
	Now    func() time.Time
	Logger *slog.Logger
}

// BundleEntry describes one route written to the archive.
type BundleEntry struct {
	Name        string `json:"name"`
	Folder      string `json:"folder"`
	Events      int    `json:"events"`
	Attachments int    `json:"attachments"`
}

// BundleReport summarizes a written bundle.
type BundleReport struct {
	Entries  []BundleEntry `json:"entries"`
	Skipped  []string      `json:"skipped,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Files    int           `json:"files"`
}

// WriteBundle writes a zip archive. A single item is laid out at the archive
// root; several items each get a folder plus a top-level index.html linking
// them, and items without location events are skipped with a warning.
// Attachments are grouped into notes/, images/, audio/ and video/.
func WriteBundle(w io.Writer, items []BundleItem, opts BundleOptions) (BundleReport, error) {
	logger := logging.NewComponentLogger(opts.Logger, "export")
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var report BundleReport
	if len(items) == 0 {
		return report, ErrEmptyExportSource
	}

	multi := len(items) > 1
	var prepared []*preparedSession
	for i, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = fmt.Sprintf("Route %d", i+1)
		}
		if len(item.Timeline.Locations()) == 0 {
			if !multi {
				return report, ErrEmptyExportSource
			}
			msg := fmt.Sprintf("%s: no location events, skipped", name)
			report.Skipped = append(report.Skipped, name)
			report.Warnings = append(report.Warnings, msg)
			logging.WarnWithContext(logger, "bundle skipped path-less session", "bundle_session_skipped",
				logging.String("name", name),
				logging.String(logging.FieldImpact, "session omitted from bundle index"),
			)
			continue
		}
		folder := ""
		if multi {
			folder = fmt.Sprintf("%02d-%s", i+1, slugify(name))
		}
		ps, err := prepareSession(item, name, folder, multi, opts.GPXCreator)
		if err != nil {
			return BundleReport{}, err
		}
		if ps.modTime.IsZero() {
			ps.modTime = now()
		}
		for _, warning := range ps.warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", name, warning))
			logging.WarnWithContext(logger, "bundle attachment dropped", "bundle_attachment_invalid",
				logging.String("name", name),
				logging.String("detail", warning),
				logging.String(logging.FieldImpact, "attachment listed without a file"),
			)
		}
		prepared = append(prepared, ps)
	}
	if len(prepared) == 0 {
		return report, ErrEmptyExportSource
	}

	var indexPage []byte
	if multi {
		page, err := renderIndex(opts.Title, prepared, report.Skipped)
		if err != nil {
			return BundleReport{}, err
		}
		indexPage = page
	}

	zw := zip.NewWriter(w)
	write := func(name string, modTime time.Time, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTime.UTC()})
		if err != nil {
			return fmt.Errorf("bundle entry %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("bundle entry %s: %w", name, err)
		}
		report.Files++
		return nil
	}

	if multi {
		if err := write("index.html", prepared[0].modTime, indexPage); err != nil {
			return BundleReport{}, err
		}
	}
	for _, ps := range prepared {
		for _, f := range ps.files {
			if err := write(path.Join(ps.folder, f.name), ps.modTime, f.data); err != nil {
				return BundleReport{}, err
			}
		}
		report.Entries = append(report.Entries, BundleEntry{
			Name:        ps.name,
			Folder:      ps.folder,
			Events:      ps.tl.Len(),
			Attachments: ps.attachments,
		})
	}
	if err := zw.Close(); err != nil {
		return BundleReport{}, fmt.Errorf("finish bundle: %w", err)
	}
	logger.Info("bundle written",
		logging.String(logging.FieldEventType, "bundle_written"),
		logging.Int("sessions", len(report.Entries)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Int("files", report.Files),
	)
	return report, nil
}

type bundleFile struct {
	name string
	data []byte
}

type preparedSession struct {
	name        string
	folder      string
	modTime     time.Time
	tl          timeline.Timeline
	files       []bundleFile
	attachments int
	warnings    []string
	page        sessionPage
}

type sessionPage struct {
	Up         bool
	Name       string
	SavedAt    string
	DistanceKm float64
	Elapsed    string
	Locations  int
	Map        svgMap
	Markers    []marker
	Data       pageData
}

type marker struct {
	Number int
	Kind   string
	Time   string
	Text   string
	File   string
	Label  string
	X, Y   float64
}

type pageData struct {
	Name       string          `json:"name"`
	DistanceKm float64         `json:"distanceKm"`
	ElapsedMs  int64           `json:"elapsedMs"`
	Path       [][2]float64    `json:"path"`
	Markers    []markerPayload `json:"markers"`
}

type markerPayload struct {
	Kind      string     `json:"type"`
	Timestamp int64      `json:"timestamp"`
	Coords    [2]float64 `json:"coords"`
	Text      string     `json:"text,omitempty"`
	File      string     `json:"file,omitempty"`
}

func prepareSession(item BundleItem, name, folder string, nested bool, creator string) (*preparedSession, error) {
	tl := item.Timeline
	ps := &preparedSession{name: name, folder: folder, modTime: item.SavedAt, tl: tl}

	eventsJSON, err := marshalEvents(tl.Events)
	if err != nil {
		return nil, err
	}
	var gpxBuf, geoBuf bytes.Buffer
	if err := WriteGPX(&gpxBuf, tl.Events, GPXOptions{Creator: creator, Name: name}); err != nil {
		return nil, err
	}
	if err := WriteGeoJSON(&geoBuf, tl.Events, name, tl.TotalDistanceKm); err != nil {
		return nil, err
	}
	ps.files = append(ps.files,
		bundleFile{name: "route.json", data: eventsJSON},
		bundleFile{name: "route.gpx", data: gpxBuf.Bytes()},
		bundleFile{name: "route.geojson", data: geoBuf.Bytes()},
	)

	locs := tl.Locations()
	proj := newProjection(locs)
	page := sessionPage{
		Up:         nested,
		Name:       name,
		DistanceKm: tl.TotalDistanceKm,
		Elapsed:    stopwatch.Format(time.Duration(tl.ElapsedMs) * time.Millisecond),
		Locations:  len(locs),
		Map:        proj.render(locs),
		Data:       pageData{Name: name, DistanceKm: tl.TotalDistanceKm, ElapsedMs: tl.ElapsedMs},
	}
	if !item.SavedAt.IsZero() {
		page.SavedAt = item.SavedAt.UTC().Format(time.RFC3339)
	}
	for _, ev := range locs {
		page.Data.Path = append(page.Data.Path, [2]float64{ev.Coords.Lat, ev.Coords.Lng})
	}

	counters := map[timeline.Kind]int{}
	for _, ev := range tl.Events {
		if ev.Kind == timeline.KindLocation {
			continue
		}
		counters[ev.Kind]++
		n := counters[ev.Kind]
		x, y := proj.point(ev.Coords.Lat, ev.Coords.Lng)
		m := marker{
			Number: len(page.Markers) + 1,
			Kind:   string(ev.Kind),
			Time:   ev.Time().Format(time.RFC3339),
			X:      x,
			Y:      y,
			Label:  fmt.Sprintf("%s %d", ev.Kind, n),
		}
		base := fmt.Sprintf("%s/%s-%03d", folderFor(ev.Kind), ev.Kind, n)
		if ev.Kind == timeline.KindNote {
			m.Text = ev.Text
			m.Label = ev.Text
			m.File = base + ".txt"
			ps.files = append(ps.files, bundleFile{name: m.File, data: []byte(ev.Text + "\n")})
		} else {
			att, err := decodeAttachment(ev.Payload())
			if err != nil {
				ps.warnings = append(ps.warnings, fmt.Sprintf("%s %d: %v", ev.Kind, n, err))
			} else {
				m.File = base + att.extension
				ps.files = append(ps.files, bundleFile{name: m.File, data: att.data})
				ps.attachments++
			}
		}
		page.Markers = append(page.Markers, m)
		page.Data.Markers = append(page.Data.Markers, markerPayload{
			Kind:      m.Kind,
			Timestamp: ev.Timestamp,
			Coords:    [2]float64{ev.Coords.Lat, ev.Coords.Lng},
			Text:      m.Text,
			File:      m.File,
		})
	}
	ps.page = page

	var html bytes.Buffer
	if err := bundleTemplates.ExecuteTemplate(&html, "session.html.tmpl", page); err != nil {
		return nil, fmt.Errorf("render session index: %w", err)
	}
	ps.files = append([]bundleFile{{name: "index.html", data: html.Bytes()}}, ps.files...)
	return ps, nil
}

type indexRow struct {
	Name        string
	Folder      string
	SavedAt     string
	DistanceKm  float64
	Elapsed     string
	Annotations int
}

func renderIndex(title string, prepared []*preparedSession, skipped []string) ([]byte, error) {
	if title == "" {
		title = "Routes"
	}
	rows := make([]indexRow, 0, len(prepared))
	for _, ps := range prepared {
		rows = append(rows, indexRow{
			Name:        ps.name,
			Folder:      ps.folder,
			SavedAt:     ps.page.SavedAt,
			DistanceKm:  ps.page.DistanceKm,
			Elapsed:     ps.page.Elapsed,
			Annotations: len(ps.page.Markers),
		})
	}
	var buf bytes.Buffer
	err := bundleTemplates.ExecuteTemplate(&buf, "index.html.tmpl", struct {
		Title    string
		Sessions []indexRow
		Skipped  []string
	}{title, rows, skipped})
	if err != nil {
		return nil, fmt.Errorf("render bundle index: %w", err)
	}
	return buf.Bytes(), nil
}

// svgMap is an equirectangular sketch of the path for the session page.
type svgMap struct {
	Width, Height int
	Polyline      string
	Start, End    svgPoint
}

type svgPoint struct{ X, Y float64 }

const (
	mapWidth   = 640
	mapHeight  = 400
	mapPadding = 20
)

type projection struct {
	minLat, minLng float64
	scale          float64
	cosLat         float64
	offX, offY     float64
}

func newProjection(locs []timeline.Event) projection {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, ev := range locs {
		minLat, maxLat = math.Min(minLat, ev.Coords.Lat), math.Max(maxLat, ev.Coords.Lat)
		minLng, maxLng = math.Min(minLng, ev.Coords.Lng), math.Max(maxLng, ev.Coords.Lng)
	}
	p := projection{minLat: minLat, minLng: minLng, cosLat: math.Cos((minLat + maxLat) / 2 * math.Pi / 180)}
	spanX := (maxLng - minLng) * p.cosLat
	spanY := maxLat - minLat
	usableW, usableH := float64(mapWidth-2*mapPadding), float64(mapHeight-2*mapPadding)
	switch {
	case spanX == 0 && spanY == 0:
		p.scale = 1
	case spanX == 0:
		p.scale = usableH / spanY
	case spanY == 0:
		p.scale = usableW / spanX
	default:
		p.scale = math.Min(usableW/spanX, usableH/spanY)
	}
	p.offX = mapPadding + (usableW-spanX*p.scale)/2
	p.offY = mapPadding + (usableH-spanY*p.scale)/2
	return p
}

func (p projection) point(lat, lng float64) (float64, float64) {
	x := p.offX + (lng-p.minLng)*p.cosLat*p.scale
	y := float64(mapHeight) - (p.offY + (lat-p.minLat)*p.scale)
	return math.Round(x*10) / 10, math.Round(y*10) / 10
}

func (p projection) render(locs []timeline.Event) svgMap {
	m := svgMap{Width: mapWidth, Height: mapHeight}
	coords := make([]string, 0, len(locs))
	for i, ev := range locs {
		x, y := p.point(ev.Coords.Lat, ev.Coords.Lng)
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", x, y))
		if i == 0 {
			m.Start = svgPoint{x, y}
		}
		m.End = svgPoint{x, y}
	}
	if len(coords) > 1 {
		m.Polyline = strings.Join(coords, " ")
	}
	return m
}
