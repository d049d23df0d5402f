package position

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
)

// Lines reads newline-delimited JSON fixes ({"lat":..,"lng":..,"accuracy":..})
// from a stream it opens per subscription, such as a file or a FIFO.
// Unsubscribe closes that stream. Use Stream for readers that outlive a
// subscription, like stdin.
type Lines struct {
	name   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

// NewLines returns a source that calls open on every Subscribe.
func NewLines(name string, open func() (io.ReadCloser, error), logger *slog.Logger) *Lines {
	return &Lines{
		name:   name,
		open:   open,
		logger: logging.NewComponentLogger(logger, "position"),
	}
}

// Subscribe opens the stream and starts reading it.
func (l *Lines) Subscribe(onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	rc, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, l.name, err)
	}
	sub := newLineSubscription(rc)
	go sub.run(l.name, l.logger, onFix, onError)
	return sub, nil
}

type lineSubscription struct {
	rc   io.ReadCloser
	once sync.Once
	done atomic.Bool
}

func newLineSubscription(rc io.ReadCloser) *lineSubscription {
	return &lineSubscription{rc: rc}
}

func (s *lineSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.done.Store(true)
		_ = s.rc.Close()
	})
}

// deliver runs fn unless the subscription was cancelled. A callback already
// in flight when Unsubscribe runs may still complete; the engine drops it by
// generation.
func (s *lineSubscription) deliver(fn func()) bool {
	if s.done.Load() {
		return false
	}
	fn()
	return true
}

func (s *lineSubscription) run(name string, logger *slog.Logger, onFix FixHandler, onError ErrorHandler) {
	lines, err := scanFixes(s.rc, name, func(fix geo.Fix) bool {
		return s.deliver(func() { onFix(fix) })
	}, func(err error) bool {
		return s.deliver(func() {
			if onError != nil {
				onError(err)
			}
		})
	})
	if s.done.Load() {
		return
	}
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	logEOF(logger, name, lines)
}

// scanFixes parses one fix per line until r is exhausted or a callback
// returns false. Malformed lines go to badLine with their line number.
func scanFixes(r io.Reader, name string, fix func(geo.Fix) bool, badLine func(error) bool) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseFixLine(line)
		if err != nil {
			if !badLine(fmt.Errorf("%s line %d: %w", name, lineNo, err)) {
				return lineNo, nil
			}
			continue
		}
		if !fix(parsed) {
			return lineNo, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNo, fmt.Errorf("%s: %w", name, err)
	}
	return lineNo, nil
}

func logEOF(logger *slog.Logger, name string, lines int) {
	logger.Info("position stream ended",
		logging.String(logging.FieldEventType, "position_eof"),
		logging.String("source", name),
		logging.Int("lines", lines),
	)
}

func parseFixLine(line string) (geo.Fix, error) {
	var fix geo.Fix
	if err := json.Unmarshal([]byte(line), &fix); err != nil {
		return geo.Fix{}, fmt.Errorf("decode fix: %w", err)
	}
	if err := ValidateFix(fix); err != nil {
		return geo.Fix{}, err
	}
	return fix, nil
}
