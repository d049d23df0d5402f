package engine

import (
	"context"
	"sync"
	"time"

	"routekeeper/internal/logging"
)

// runTimers holds the background tickers of one tracking run.
type runTimers struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	timerInterval  time.Duration
	elapsedCancel  context.CancelFunc
	backupInterval time.Duration
}

func (e *Engine) startTimersLocked(parent context.Context) {
	// The run outlives the request that started it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	t := &runTimers{
		ctx:            ctx,
		cancel:         cancel,
		timerInterval:  e.opts.TimerInterval,
		backupInterval: e.opts.BackupInterval,
	}
	e.timers = t
	t.startElapsed(e, e.gen)
	if t.backupInterval > 0 {
		gen := e.gen
		t.loop(t.ctx, t.backupInterval, func() { e.backupTick(t.ctx, gen) })
	}
}

func (t *runTimers) startElapsed(e *Engine, gen uint64) {
	if t == nil || t.timerInterval <= 0 || t.elapsedCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.elapsedCancel = cancel
	t.loop(ctx, t.timerInterval, func() { e.elapsedTick(gen) })
}

func (t *runTimers) stopElapsed() {
	if t == nil || t.elapsedCancel == nil {
		return
	}
	t.elapsedCancel()
	t.elapsedCancel = nil
}

func (t *runTimers) loop(ctx context.Context, interval time.Duration, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// stop cancels every ticker and waits for in-flight ticks. It must be called
// without the engine mutex held.
func (t *runTimers) stop() {
	if t == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
}

// TickElapsed recomputes elapsed time as the 1 Hz timer would.
func (e *Engine) TickElapsed() time.Duration {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	e.elapsedTick(gen)
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.tl.ElapsedMs) * time.Millisecond
}

// TickBackup writes the backup snapshot as the backup timer would. It
// reports whether a snapshot was written.
func (e *Engine) TickBackup(ctx context.Context) (bool, error) {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	return e.backupTick(ctx, gen)
}

func (e *Engine) elapsedTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.state != Tracking {
		return
	}
	e.tl.ElapsedMs = e.watch.Tick().Milliseconds()
}

func (e *Engine) backupTick(ctx context.Context, gen uint64) (bool, error) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	if gen != e.gen || !e.state.Active() {
		e.mu.Unlock()
		return false, nil
	}
	if e.state == Tracking {
		e.tl.ElapsedMs = e.watch.Tick().Milliseconds()
	}
	snapshot := e.tl.Clone()
	e.mu.Unlock()

	written, err := e.backups.Save(ctx, snapshot)
	if err != nil {
		logging.WarnWithContext(e.logger, "auto-backup failed", "backup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recent movement may be lost on crash"),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the data directory"),
		)
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return false, err
	}
	if written {
		e.mu.Lock()
		if gen == e.gen {
			e.lastBackupAt = e.now()
		}
		e.mu.Unlock()
	}
	return written, nil
}
