// Package backup keeps a single crash-recovery snapshot of the in-progress
// route in the key-value store.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"routekeeper/internal/logging"
	"routekeeper/internal/timeline"
)

// Key is the store key of the backup slot.
const Key = "route_backup"

// Store is the subset of the key-value store the manager needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Snapshot is the persisted form of an interrupted route.
type Snapshot struct {
	Events          []timeline.Event `json:"routeData"`
	TotalDistanceKm float64          `json:"totalDistance"`
	ElapsedMs       int64            `json:"elapsedTime"`
}

// FromTimeline copies a timeline into a snapshot.
func FromTimeline(tl timeline.Timeline) Snapshot {
	return Snapshot{Events: tl.Events, TotalDistanceKm: tl.TotalDistanceKm, ElapsedMs: tl.ElapsedMs}
}

// Timeline rehydrates the snapshot.
func (s Snapshot) Timeline() timeline.Timeline {
	return timeline.Timeline{Events: s.Events, TotalDistanceKm: s.TotalDistanceKm, ElapsedMs: s.ElapsedMs}
}

// Status classifies the backup slot.
type Status int

const (
	Missing Status = iota
	Valid
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Valid:
		return "valid"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

var errEmptySnapshot = errors.New("snapshot has no events")

// Manager reads and writes the backup slot.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager wraps store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logging.NewComponentLogger(logger, "backup")}
}

// Save writes tl to the slot. Empty timelines are skipped and report false.
func (m *Manager) Save(ctx context.Context, tl timeline.Timeline) (bool, error) {
	if tl.Len() == 0 {
		return false, nil
	}
	payload, err := json.Marshal(FromTimeline(tl))
	if err != nil {
		return false, fmt.Errorf("encode backup: %w", err)
	}
	if err := m.store.Set(ctx, Key, payload); err != nil {
		return false, fmt.Errorf("write backup: %w", err)
	}
	m.logger.Debug("backup written",
		logging.String(logging.FieldEventType, "backup_written"),
		logging.Int("events", tl.Len()),
		logging.Float64("distance_km", tl.TotalDistanceKm),
	)
	return true, nil
}

// Load reads the slot. A corrupt slot is reported through Status, never as
// an error; the error return is reserved for store failures.
func (m *Manager) Load(ctx context.Context) (Snapshot, Status, error) {
	raw, ok, err := m.store.Get(ctx, Key)
	if err != nil {
		return Snapshot{}, Missing, fmt.Errorf("read backup: %w", err)
	}
	if !ok {
		return Snapshot{}, Missing, nil
	}
	snap, err := decode(raw)
	if err != nil {
		logging.WarnWithContext(m.logger, "backup slot unreadable", "backup_corrupt",
			logging.Error(err),
			logging.Int("bytes", len(raw)),
			logging.String(logging.FieldErrorHint, "the interrupted route cannot be recovered"),
			logging.String(logging.FieldImpact, "backup will be discarded"),
		)
		return Snapshot{}, Corrupt, nil
	}
	return snap, Valid, nil
}

// Clear deletes the slot.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

func decode(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	if len(snap.Events) == 0 {
		return Snapshot{}, errEmptySnapshot
	}
	if snap.TotalDistanceKm < 0 || snap.ElapsedMs < 0 {
		return Snapshot{}, fmt.Errorf("negative totals (distance=%v elapsed=%d)", snap.TotalDistanceKm, snap.ElapsedMs)
	}
	var last int64
	for i, ev := range snap.Events {
		if err := ev.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("event %d: %w", i, err)
		}
		if i > 0 && ev.Timestamp < last {
			return Snapshot{}, fmt.Errorf("event %d: %w", i, timeline.ErrOutOfOrder)
		}
		last = ev.Timestamp
	}
	return snap, nil
}
