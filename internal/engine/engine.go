package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routekeeper/internal/backup"
	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
	"routekeeper/internal/position"
	"routekeeper/internal/sessions"
	"routekeeper/internal/stopwatch"
	"routekeeper/internal/timeline"
)

// Engine owns the live route: its timeline, stopwatch, distance
// accumulator, position subscription, and background tickers.
//
// All mutation happens under mu. Position callbacks and tickers capture the
// generation current when they were started; any operation that ends a run
// bumps the generation so late callbacks are dropped.
type Engine struct {
	opts     Options
	source   position.Source
	backups  *backup.Manager
	sessions *sessions.Repository
	logger   *slog.Logger
	now      func() time.Time

	// persistMu orders backup writes against slot deletion.
	persistMu sync.Mutex

	mu       sync.Mutex
	state    State
	closed   bool
	gen      uint64
	tl       timeline.Timeline
	acc      geo.Accumulator
	watch    *stopwatch.Stopwatch
	sub      position.Subscription
	timers   *runTimers
	counters map[geo.Verdict]int

	lastFixAt    time.Time
	lastBackupAt time.Time
	lastErr      error
}

// New constructs an idle engine.
func New(source position.Source, backups *backup.Manager, repo *sessions.Repository, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		opts:     opts,
		source:   source,
		backups:  backups,
		sessions: repo,
		logger:   logging.NewComponentLogger(opts.Logger, "engine"),
		now:      now,
		watch:    stopwatch.New(now),
		counters: make(map[geo.Verdict]int),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins a new route. It requires Idle. If the position source cannot
// be subscribed the engine stays Idle and ErrCapabilityUnavailable is
// returned.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.state != Idle {
		return transitionErr("start", e.state)
	}

	e.resetRouteLocked()
	if err := e.subscribeLocked(); err != nil {
		return err
	}
	e.watch.Start()
	e.state = Tracking
	e.startTimersLocked(ctx)

	e.logger.Info("tracking started",
		logging.String(logging.FieldEventType, "tracking_started"),
		logging.String(logging.FieldState, e.state.String()),
	)
	return nil
}

// Pause freezes the stopwatch. Fixes keep arriving but are discarded; the
// backup ticker keeps running.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.state != Tracking {
		return transitionErr("pause", e.state)
	}
	e.tl.ElapsedMs = e.watch.Stop().Milliseconds()
	e.timers.stopElapsed()
	e.state = Paused
	e.logger.Info("tracking paused",
		logging.String(logging.FieldEventType, "tracking_paused"),
		logging.String("elapsed", stopwatch.Format(e.watch.Elapsed())),
	)
	return nil
}

// Resume continues a paused route, rebasing the stopwatch so paused time is
// not counted.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.state != Paused {
		return transitionErr("resume", e.state)
	}
	if e.opts.ReanchorOnResume {
		e.acc.Reanchor()
	}
	e.watch.Start()
	e.state = Tracking
	e.timers.startElapsed(e, e.gen)
	e.logger.Info("tracking resumed",
		logging.String(logging.FieldEventType, "tracking_resumed"),
		logging.Bool("reanchored", e.opts.ReanchorOnResume),
	)
	return nil
}

// Decider is asked whether to keep a finished route. Returning save=true
// stores it under name.
type Decider func(Summary) (name string, save bool)

// Summary describes a finished route.
type Summary struct {
	DistanceKm  float64       `json:"distanceKm"`
	Elapsed     time.Duration `json:"elapsed"`
	ElapsedText string        `json:"elapsedText"`
	Events      int           `json:"events"`
	Locations   int           `json:"locations"`
}

// StopResult is what Stop hands back to the caller.
type StopResult struct {
	Summary  Summary           `json:"summary"`
	Timeline timeline.Timeline `json:"timeline"`
	Saved    bool              `json:"saved"`
	Index    int               `json:"index"`
	Session  *sessions.Session `json:"session,omitempty"`
	// RescuePath is set when saving failed and the route was written to disk instead.
	RescuePath string `json:"rescuePath,omitempty"`
}

// Stop ends the route. The position subscription and timers are cancelled,
// the backup slot is deleted, decide is consulted with the summary, the
// route is saved if requested, and the engine returns to Idle with an empty
// timeline. A nil decide discards the route.
func (e *Engine) Stop(ctx context.Context, decide Decider) (StopResult, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return StopResult{}, ErrClosed
	}
	if !e.state.Active() {
		state := e.state
		e.mu.Unlock()
		return StopResult{}, transitionErr("stop", state)
	}
	sub, timers := e.detachLocked()
	e.tl.ElapsedMs = e.watch.Stop().Milliseconds()
	e.state = Stopped
	frozen := e.tl.Clone()
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	timers.stop()

	if err := e.clearBackup(ctx); err != nil {
		logging.WarnWithContext(e.logger, "backup slot not cleared on stop", "backup_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale backup may be offered for recovery"),
		)
	}

	result := StopResult{Summary: summarize(frozen), Timeline: frozen, Index: -1}
	var saveErr error
	if decide != nil {
		if name, ok := decide(result.Summary); ok {
			saveErr = e.saveSession(ctx, frozen, name, &result)
		}
	}

	e.mu.Lock()
	e.resetRouteLocked()
	e.state = Idle
	e.lastErr = saveErr
	e.mu.Unlock()

	e.logger.Info("tracking stopped",
		logging.String(logging.FieldEventType, "tracking_stopped"),
		logging.Float64("distance_km", result.Summary.DistanceKm),
		logging.String("elapsed", result.Summary.ElapsedText),
		logging.Int("events", result.Summary.Events),
		logging.Bool("saved", result.Saved),
	)
	return result, saveErr
}

// saveSession runs without mu while the engine is parked in Stopped.
func (e *Engine) saveSession(ctx context.Context, frozen timeline.Timeline, name string, result *StopResult) error {
	index, session, err := e.sessions.Save(ctx, frozen, name)
	if err == nil {
		result.Saved = true
		result.Index = index
		result.Session = &session
		return nil
	}
	if errors.Is(err, sessions.ErrNameRequired) {
		return err
	}
	path, rescueErr := e.writeRescue(frozen)
	if rescueErr != nil {
		logging.ErrorWithContext(e.logger, "route rescue failed", "rescue_failed",
			logging.Error(rescueErr),
			logging.String(logging.FieldImpact, "route data lost"),
		)
		return errors.Join(err, rescueErr)
	}
	result.RescuePath = path
	logging.WarnWithContext(e.logger, "session save failed; route written to rescue file", "session_save_failed",
		logging.Error(err),
		logging.String("path", path),
		logging.String(logging.FieldImpact, "session missing from the saved list"),
		logging.String(logging.FieldErrorHint, "import the rescue file or inspect the data directory"),
	)
	return err
}

// Reset abandons the current route from any state and deletes the backup.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state == Stopped {
		e.mu.Unlock()
		return transitionErr("reset", Stopped)
	}
	sub, timers := e.detachLocked()
	e.resetRouteLocked()
	e.state = Idle
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	timers.stop()
	if err := e.clearBackup(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	e.logger.Info("tracking reset", logging.String(logging.FieldEventType, "tracking_reset"))
	return nil
}

// Shutdown ends the process-level lifetime of the engine without stopping
// the route: timers and the subscription are cancelled and one final backup
// is flushed so the route can be recovered on the next start.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	active := e.state.Active()
	sub, timers := e.detachLocked()
	if e.state == Tracking {
		e.tl.ElapsedMs = e.watch.Stop().Milliseconds()
	}
	snapshot := e.tl.Clone()
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	timers.stop()
	if !active {
		return nil
	}
	e.persistMu.Lock()
	written, err := e.backups.Save(ctx, snapshot)
	e.persistMu.Unlock()
	if err != nil {
		return fmt.Errorf("final backup: %w", err)
	}
	e.logger.Info("engine shut down",
		logging.String(logging.FieldEventType, "engine_shutdown"),
		logging.Bool("backup_written", written),
		logging.Int("events", snapshot.Len()),
	)
	return nil
}

// Timeline returns a copy of the live timeline.
func (e *Engine) Timeline() timeline.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Tracking {
		e.tl.ElapsedMs = e.watch.Tick().Milliseconds()
	}
	return e.tl.Clone()
}

func (e *Engine) clearBackup(ctx context.Context) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	return e.backups.Clear(ctx)
}

func (e *Engine) subscribeLocked() error {
	if e.source == nil {
		return fmt.Errorf("%w: no position source configured", ErrCapabilityUnavailable)
	}
	gen := e.gen
	sub, err := e.source.Subscribe(
		func(fix geo.Fix) { e.handleFix(gen, fix) },
		func(err error) { e.handleSourceError(gen, err) },
	)
	if err != nil {
		logging.WarnWithContext(e.logger, "position source refused subscription", "capability_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "tracking not started"),
			logging.String(logging.FieldErrorHint, "check position.source and position.path"),
		)
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	e.sub = sub
	return nil
}

// detachLocked bumps the generation and hands back the subscription and
// timers so the caller can cancel them after releasing mu.
func (e *Engine) detachLocked() (position.Subscription, *runTimers) {
	e.gen++
	sub, timers := e.sub, e.timers
	e.sub, e.timers = nil, nil
	return sub, timers
}

func (e *Engine) resetRouteLocked() {
	e.tl.Reset()
	e.acc.Reset()
	e.watch.Reset()
	e.counters = make(map[geo.Verdict]int)
	e.lastFixAt = time.Time{}
	e.lastBackupAt = time.Time{}
}

func summarize(tl timeline.Timeline) Summary {
	elapsed := time.Duration(tl.ElapsedMs) * time.Millisecond
	return Summary{
		DistanceKm:  tl.TotalDistanceKm,
		Elapsed:     elapsed,
		ElapsedText: stopwatch.Format(elapsed),
		Events:      tl.Len(),
		Locations:   len(tl.Locations()),
	}
}
