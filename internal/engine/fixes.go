package engine

import (
	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
	"routekeeper/internal/timeline"
)

// handleFix runs one raw fix through the filter and, when accepted, extends
// the distance and the timeline under a single lock hold.
func (e *Engine) handleFix(gen uint64, fix geo.Fix) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || !e.state.Active() {
		return
	}

	verdict, leg := e.opts.Filter.Evaluate(e.acc.Last(), fix, e.state == Paused)
	e.counters[verdict]++
	if verdict != geo.Accepted {
		e.logger.Debug("fix rejected",
			logging.String("verdict", verdict.String()),
			logging.Float64("accuracy_m", fix.AccuracyMeters),
			logging.Float64("leg_km", leg),
		)
		return
	}

	point := fix.Point()
	ts := e.clampTimestampLocked(e.now().UnixMilli())
	if err := e.tl.Append(timeline.Location(ts, point)); err != nil {
		e.logger.Debug("fix not appended", logging.Error(err))
		return
	}
	e.acc.Accept(point)
	e.tl.TotalDistanceKm = e.acc.TotalKm()
	e.lastFixAt = e.now()
}

func (e *Engine) handleSourceError(gen uint64, err error) {
	e.mu.Lock()
	stale := gen != e.gen
	if !stale {
		e.lastErr = err
	}
	e.mu.Unlock()
	if stale {
		return
	}
	logging.WarnWithContext(e.logger, "position source error", "position_error",
		logging.Error(err),
		logging.String(logging.FieldImpact, "fix skipped"),
	)
	if e.opts.OnSourceError != nil {
		e.opts.OnSourceError(err)
	}
}

// clampTimestampLocked keeps the timeline non-decreasing when the clock or a
// media adapter reports an earlier instant.
func (e *Engine) clampTimestampLocked(ts int64) int64 {
	if last := e.tl.LastTimestamp(); e.tl.Len() > 0 && ts < last {
		return last
	}
	if ts < 0 {
		return 0
	}
	return ts
}
