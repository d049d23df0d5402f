package engine

import (
	"context"
	"fmt"
	"time"

	"routekeeper/internal/backup"
	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
)

// Recovery is the result of inspecting the backup slot at startup.
type Recovery int

const (
	// NothingToRecover means the slot was empty.
	NothingToRecover Recovery = iota
	// Restored means tracking resumed from the snapshot.
	Restored
	// Declined means the caller chose not to restore; the slot was deleted.
	Declined
	// DiscardedCorrupt means the slot could not be read and was deleted.
	DiscardedCorrupt
)

func (r Recovery) String() string {
	switch r {
	case NothingToRecover:
		return "none"
	case Restored:
		return "restored"
	case Declined:
		return "declined"
	case DiscardedCorrupt:
		return "discarded_corrupt"
	default:
		return "unknown"
	}
}

// RecoveryDecider is asked whether an interrupted route should be restored.
type RecoveryDecider func(Summary) bool

// Recover inspects the backup slot. It requires Idle. A valid snapshot is
// offered to decide; on acceptance the timeline, distance, and stopwatch are
// rehydrated and tracking resumes. Corrupt snapshots are deleted and logged
// and leave the engine Idle without returning an error.
func (e *Engine) Recover(ctx context.Context, decide RecoveryDecider) (Recovery, Summary, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return NothingToRecover, Summary{}, ErrClosed
	}
	if e.state != Idle {
		state := e.state
		e.mu.Unlock()
		return NothingToRecover, Summary{}, transitionErr("recover", state)
	}
	e.mu.Unlock()

	snap, status, err := e.backups.Load(ctx)
	if err != nil {
		return NothingToRecover, Summary{}, err
	}
	switch status {
	case backup.Missing:
		return NothingToRecover, Summary{}, nil
	case backup.Corrupt:
		if err := e.clearBackup(ctx); err != nil {
			logging.WarnWithContext(e.logger, "corrupt backup could not be deleted", "backup_clear_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the corrupt snapshot will be inspected again next start"),
			)
		}
		return DiscardedCorrupt, Summary{}, nil
	}

	restored := snap.Timeline()
	summary := summarize(restored)
	if decide == nil || !decide(summary) {
		if err := e.clearBackup(ctx); err != nil {
			return Declined, summary, fmt.Errorf("discard backup: %w", err)
		}
		e.logger.Info("interrupted route discarded",
			logging.String(logging.FieldEventType, "recovery_declined"),
			logging.Int("events", summary.Events),
		)
		return Declined, summary, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return NothingToRecover, summary, transitionErr("recover", e.state)
	}
	e.resetRouteLocked()
	if err := e.subscribeLocked(); err != nil {
		// The slot is kept so the route is not lost.
		return NothingToRecover, summary, err
	}
	e.tl = restored
	var anchor *geo.Point
	if last, ok := restored.LastLocation(); ok {
		anchor = &last.Coords
	}
	e.acc.Restore(restored.TotalDistanceKm, anchor)
	e.watch.Restore(time.Duration(restored.ElapsedMs) * time.Millisecond)
	e.watch.Start()
	e.state = Tracking
	e.startTimersLocked(ctx)

	e.logger.Info("interrupted route restored",
		logging.String(logging.FieldEventType, "recovery_restored"),
		logging.Int("events", summary.Events),
		logging.Float64("distance_km", summary.DistanceKm),
		logging.String("elapsed", summary.ElapsedText),
	)
	return Restored, summary, nil
}
