package position

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routekeeper/internal/geo"
	"routekeeper/internal/gpx"
	"routekeeper/internal/logging"
)

// Replay feeds the track points of a GPX file as fixes, one per interval.
// It is used for demos and for re-recording an existing track.
type Replay struct {
	path     string
	interval time.Duration
	accuracy float64
	logger   *slog.Logger
}

// NewReplay returns a GPX replay source. A non-positive interval emits all
// points back to back.
func NewReplay(path string, interval time.Duration, accuracyMeters float64, logger *slog.Logger) *Replay {
	return &Replay{
		path:     path,
		interval: interval,
		accuracy: accuracyMeters,
		logger:   logging.NewComponentLogger(logger, "position"),
	}
}

// Subscribe parses the file and starts the replay goroutine.
func (r *Replay) Subscribe(onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	doc, err := gpx.Parse(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	points := doc.FlattenPoints()
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s has no track points", ErrUnavailable, r.path)
	}

	sub := &replaySubscription{stop: make(chan struct{})}
	go sub.run(points, r.interval, r.accuracy, onFix, r.logger)
	r.logger.Info("gpx replay started",
		logging.String(logging.FieldEventType, "replay_started"),
		logging.String("path", r.path),
		logging.Int("points", len(points)),
		logging.Duration("interval", r.interval),
	)
	return sub, nil
}

type replaySubscription struct {
	stop chan struct{}
	once sync.Once
}

func (s *replaySubscription) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
}

func (s *replaySubscription) run(points []gpx.Point, interval time.Duration, accuracy float64, onFix FixHandler, logger *slog.Logger) {
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}
	for i, p := range points {
		if i > 0 && ticker != nil {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
		select {
		case <-s.stop:
			return
		default:
		}
		onFix(geo.Fix{Lat: p.Lat, Lng: p.Lon, AccuracyMeters: accuracy})
	}
	logger.Info("gpx replay finished",
		logging.String(logging.FieldEventType, "replay_finished"),
		logging.Int("points", len(points)),
	)
}
