package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"routekeeper/internal/backup"
	"routekeeper/internal/config"
	"routekeeper/internal/engine"
	"routekeeper/internal/kvstore"
	"routekeeper/internal/logging"
	"routekeeper/internal/notifications"
	"routekeeper/internal/position"
	"routekeeper/internal/preflight"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

const sourceNotifyInterval = time.Minute

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another routekeeper daemon instance is already running")

// Daemon coordinates the engine, its stores and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *kvstore.Store
	engine   *engine.Engine
	sessions *sessions.Repository
	push     *position.Push
	notifier notifications.Service
	prompt   engine.RecoveryDecider
	runID    string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	api       *apiServer
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	running   atomic.Bool

	lastSourceNotify atomic.Int64
}

// Option customizes a Daemon.
type Option func(*settings)

type settings struct {
	prompt     engine.RecoveryDecider
	engineOpts func(*engine.Options)
	source     position.Source
	notifier   notifications.Service
}

// WithPrompt installs the question asked when the recovery policy is
// "prompt". Without one an interrupted route is restored.
func WithPrompt(prompt engine.RecoveryDecider) Option {
	return func(s *settings) { s.prompt = prompt }
}

// WithEngineOptions adjusts the engine options derived from config.
func WithEngineOptions(fn func(*engine.Options)) Option {
	return func(s *settings) { s.engineOpts = fn }
}

// WithSource replaces the configured position source.
func WithSource(src position.Source) Option {
	return func(s *settings) { s.source = src }
}

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(s *settings) { s.notifier = svc }
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool          `json:"running"`
	PID        int           `json:"pid"`
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt,omitzero"`
	StorePath  string        `json:"storePath"`
	LockPath   string        `json:"lockPath"`
	SocketPath string        `json:"socketPath"`
	APIAddress string        `json:"apiAddress,omitempty"`
	Source     string        `json:"source"`
	Sessions   int           `json:"sessions"`
	Engine     engine.Status `json:"engine"`
	LastError  string        `json:"lastError,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *kvstore.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	runID := uuid.NewString()
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	push := position.NewPush()
	source := s.source
	if source == nil {
		var err error
		source, err = position.FromConfig(cfg, push, logger)
		if err != nil {
			return nil, fmt.Errorf("position source: %w", err)
		}
	}

	notifier := s.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		push:     push,
		notifier: notifier,
		prompt:   s.prompt,
		runID:    runID,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	repo := sessions.NewRepository(store, logger)
	engineOpts := engine.OptionsFromConfig(cfg, logger)
	engineOpts.OnSourceError = d.sourceFailed
	if s.engineOpts != nil {
		s.engineOpts(&engineOpts)
	}
	d.sessions = repo
	d.engine = engine.New(source, backup.NewManager(store, logger), repo, engineOpts)
	return d, nil
}

// Start runs preflight, acquires the daemon lock and starts the HTTP API.
// Tracking is not started; see Begin.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := preflight.Err(preflight.RunAll(ctx, d.cfg)); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(logging.WithRunID(ctx, d.runID))
	api := newAPIServer(d.cfg, d, d.logger)
	if err := api.start(); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.api = api
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("routekeeper daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("source", d.cfg.Position.Source),
	)
	return nil
}

// Begin applies the recovery policy and, when nothing was restored and
// startTracking is set, starts a fresh route.
func (d *Daemon) Begin(ctx context.Context, startTracking bool) (engine.Recovery, error) {
	outcome, summary, err := d.engine.Recover(ctx, d.recoveryDecider())
	if err != nil {
		return outcome, fmt.Errorf("recover: %w", err)
	}
	if outcome != engine.NothingToRecover {
		d.logger.Info("recovery finished",
			logging.String(logging.FieldEventType, "recovery_"+outcome.String()),
			logging.String("policy", d.cfg.Tracking.Recovery),
			logging.Int("events", summary.Events),
		)
	}
	switch outcome {
	case engine.Restored:
		d.notify(ctx, notifications.EventRouteRestored, notifications.Payload{
			"distanceKm": strconv.FormatFloat(summary.DistanceKm, 'f', 2, 64),
			"events":     strconv.Itoa(summary.Events),
		})
	case engine.DiscardedCorrupt:
		d.notify(ctx, notifications.EventBackupDiscarded, nil)
	}
	if outcome == engine.Restored || !startTracking {
		return outcome, nil
	}
	if err := d.engine.Start(d.runContext(ctx)); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (d *Daemon) recoveryDecider() engine.RecoveryDecider {
	switch d.cfg.Tracking.Recovery {
	case "discard":
		return func(engine.Summary) bool { return false }
	case "prompt":
		if d.prompt != nil {
			return d.prompt
		}
	}
	return func(engine.Summary) bool { return true }
}

// Stop flushes a final backup, stops the HTTP API and releases the lock.
// An active route is left in the backup slot for the next start.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.engine.Shutdown(shutdownCtx); err != nil {
		logging.ErrorWithContext(d.logger, "final backup failed", "daemon_shutdown_backup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "up to one backup interval of the route may be lost"),
		)
	}
	d.api.stop()
	d.api = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start reports another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("routekeeper daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Done is closed when the daemon stops.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return d.ctx.Done()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		RunID:      d.runID,
		StorePath:  d.store.Path(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.SocketPath(),
		Source:     d.cfg.Position.Source,
		Engine:     d.engine.Status(),
	}
	d.mu.Lock()
	st.StartedAt = d.startedAt
	if d.api != nil {
		st.APIAddress = d.api.address()
	}
	d.mu.Unlock()

	list, err := d.sessions.List(ctx)
	if err != nil {
		st.LastError = err.Error()
	}
	st.Sessions = len(list)
	return st
}

// Engine exposes the tracking engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Sessions exposes the session repository.
func (d *Daemon) Sessions() *sessions.Repository {
	return d.sessions
}

// StartTracking begins a new route.
func (d *Daemon) StartTracking(ctx context.Context) error {
	return d.engine.Start(d.runContext(ctx))
}

// StopTracking ends the route and saves it under name when save is set.
func (d *Daemon) StopTracking(ctx context.Context, name string, save bool) (engine.StopResult, error) {
	result, err := d.engine.Stop(ctx, func(engine.Summary) (string, bool) {
		return name, save
	})
	switch {
	case result.Saved:
		d.notify(ctx, notifications.EventRouteSaved, notifications.Payload{
			"name":       result.Session.Name,
			"distanceKm": result.Session.TotalDistanceKm,
			"elapsed":    result.Session.Elapsed,
		})
	case err != nil && save && !errors.Is(err, engine.ErrInvalidTransition) && !errors.Is(err, engine.ErrClosed):
		d.notify(ctx, notifications.EventSaveFailed, notifications.Payload{
			"error":      err.Error(),
			"rescuePath": result.RescuePath,
		})
	}
	return result, err
}

// TestNotification sends a test message. It reports false when
// notifications are disabled.
func (d *Daemon) TestNotification(ctx context.Context) (bool, error) {
	if !notifications.Enabled(d.notifier) {
		return false, nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, err
	}
	return true, nil
}

// sourceFailed runs on the source goroutine; at most one notification per
// sourceNotifyInterval is sent.
func (d *Daemon) sourceFailed(err error) {
	now := time.Now().UnixNano()
	last := d.lastSourceNotify.Load()
	if last != 0 && time.Duration(now-last) < sourceNotifyInterval {
		return
	}
	if !d.lastSourceNotify.CompareAndSwap(last, now) {
		return
	}
	go d.notify(context.Background(), notifications.EventSourceFailed, notifications.Payload{
		"source": d.cfg.Position.Source,
		"error":  err.Error(),
	})
}

func (d *Daemon) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "milestone not delivered"),
		)
	}
}

// Attach adds a media attachment at the current position.
func (d *Daemon) Attach(kind timeline.Kind, payload string) (timeline.Event, error) {
	if kind == timeline.KindNote {
		return d.engine.AddNote(payload)
	}
	return d.engine.Annotate(kind, payload)
}

// runContext returns the daemon context once started, else ctx.
func (d *Daemon) runContext(ctx context.Context) context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx
	}
	return ctx
}
