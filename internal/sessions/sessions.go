// Package sessions persists completed routes as an ordered list of named
// sessions.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"routekeeper/internal/backup"
	"routekeeper/internal/kvstore"
	"routekeeper/internal/logging"
	"routekeeper/internal/stopwatch"
	"routekeeper/internal/timeline"
)

// Key is the store key holding the session list.
const Key = "route_sessions"

var (
	// ErrNotFound is returned for out-of-range indices and unknown IDs.
	ErrNotFound = errors.New("session not found")
	// ErrNameRequired is returned when saving with a blank name.
	ErrNameRequired = errors.New("session name is required")
)

// Session is one saved route.
type Session struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	SavedAt         string           `json:"savedAt"`
	Elapsed         string           `json:"elapsed"`
	TotalDistanceKm string           `json:"totalDistanceKm"`
	Events          []timeline.Event `json:"events"`
}

// Distance parses the stored two-decimal distance.
func (s Session) Distance() float64 {
	v, err := strconv.ParseFloat(s.TotalDistanceKm, 64)
	if err != nil {
		return 0
	}
	return v
}

// SavedTime parses SavedAt; zero when unparseable.
func (s Session) SavedTime() time.Time {
	t, err := time.Parse(time.RFC3339, s.SavedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Timeline rehydrates the session into a read-only timeline copy.
func (s Session) Timeline() timeline.Timeline {
	tl := timeline.Timeline{TotalDistanceKm: s.Distance()}
	if s.Events != nil {
		tl.Events = make([]timeline.Event, len(s.Events))
		copy(tl.Events, s.Events)
	}
	if d, err := stopwatch.Parse(s.Elapsed); err == nil {
		tl.ElapsedMs = d.Milliseconds()
	}
	return tl
}

// View is a loaded session together with its list position.
type View struct {
	Index    int
	Session  Session
	Timeline timeline.Timeline
}

// Store is the subset of the key-value store the repository needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Batch(ctx context.Context, fn func(*kvstore.Tx) error) error
}

// Repository reads and writes the session list.
type Repository struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository wraps store.
func NewRepository(store Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{store: store, now: time.Now, logger: logging.NewComponentLogger(logger, "sessions")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save appends tl as a new session named name and deletes the backup slot in
// the same transaction. It returns the new session's index.
func (r *Repository) Save(ctx context.Context, tl timeline.Timeline, name string) (int, Session, error) {
	return r.add(ctx, tl, name, true)
}

// Import appends a route that did not come from the live engine, such as a
// decoded share link. The backup slot is left alone.
func (r *Repository) Import(ctx context.Context, tl timeline.Timeline, name string) (int, Session, error) {
	return r.add(ctx, tl, name, false)
}

func (r *Repository) add(ctx context.Context, tl timeline.Timeline, name string, clearBackup bool) (int, Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, Session{}, ErrNameRequired
	}
	session := Session{
		ID:              uuid.NewString(),
		Name:            name,
		SavedAt:         r.now().UTC().Format(time.RFC3339),
		Elapsed:         stopwatch.Format(time.Duration(tl.ElapsedMs) * time.Millisecond),
		TotalDistanceKm: strconv.FormatFloat(tl.TotalDistanceKm, 'f', 2, 64),
		Events:          tl.Clone().Events,
	}
	if session.Events == nil {
		session.Events = []timeline.Event{}
	}

	var index int
	err := r.store.Batch(ctx, func(tx *kvstore.Tx) error {
		list, err := readList(tx.Get)
		if err != nil {
			return err
		}
		list = append(list, session)
		index = len(list) - 1
		if err := writeList(tx, list); err != nil {
			return err
		}
		if !clearBackup {
			return nil
		}
		return tx.Delete(backup.Key)
	})
	if err != nil {
		return 0, Session{}, fmt.Errorf("save session: %w", err)
	}
	r.logger.Info("session saved",
		logging.Bool("imported", !clearBackup),
		logging.String(logging.FieldEventType, "session_saved"),
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("name", session.Name),
		logging.Int("index", index),
		logging.Int("events", len(session.Events)),
	)
	return index, session, nil
}

// List returns all sessions in insertion order.
func (r *Repository) List(ctx context.Context) ([]Session, error) {
	list, err := readList(func(key string) ([]byte, bool, error) {
		return r.store.Get(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// LoadByIndex returns the session at index.
func (r *Repository) LoadByIndex(ctx context.Context, index int) (View, error) {
	list, err := r.List(ctx)
	if err != nil {
		return View{}, err
	}
	if index < 0 || index >= len(list) {
		return View{}, fmt.Errorf("%w: index %d (have %d)", ErrNotFound, index, len(list))
	}
	return View{Index: index, Session: list[index], Timeline: list[index].Timeline()}, nil
}

// LoadByID returns the session with the given ID.
func (r *Repository) LoadByID(ctx context.Context, id string) (View, error) {
	list, err := r.List(ctx)
	if err != nil {
		return View{}, err
	}
	for i, s := range list {
		if s.ID == id {
			return View{Index: i, Session: s, Timeline: s.Timeline()}, nil
		}
	}
	return View{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// Resolve accepts either a numeric index or a session ID.
func (r *Repository) Resolve(ctx context.Context, ref string) (View, error) {
	ref = strings.TrimSpace(ref)
	if idx, err := strconv.Atoi(ref); err == nil {
		return r.LoadByIndex(ctx, idx)
	}
	return r.LoadByID(ctx, ref)
}

// ClearAll removes every saved session and the backup slot in one
// transaction.
func (r *Repository) ClearAll(ctx context.Context) (int, error) {
	var removed int
	err := r.store.Batch(ctx, func(tx *kvstore.Tx) error {
		list, err := readList(tx.Get)
		if err != nil {
			// An unreadable list is cleared all the same.
			list = nil
		}
		removed = len(list)
		if err := tx.Delete(Key); err != nil {
			return err
		}
		return tx.Delete(backup.Key)
	})
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	r.logger.Info("sessions cleared",
		logging.String(logging.FieldEventType, "sessions_cleared"),
		logging.Int("removed", removed),
	)
	return removed, nil
}

func readList(get func(string) ([]byte, bool, error)) ([]Session, error) {
	raw, ok, err := get(Key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []Session{}, nil
	}
	var list []Session
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode session list: %w", err)
	}
	if list == nil {
		list = []Session{}
	}
	return list, nil
}

func writeList(tx *kvstore.Tx, list []Session) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode session list: %w", err)
	}
	return tx.Set(Key, payload)
}
