// Package position delivers raw position fixes to the tracking engine.
//
// A Source is subscribed once per tracking run. Fixes are delivered on the
// source's own goroutine; callers serialize as needed. After Unsubscribe
// returns no further callbacks are made.
package position

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"routekeeper/internal/config"
	"routekeeper/internal/geo"
)

// ErrUnavailable is returned by Subscribe when the source cannot deliver
// fixes at all (missing file, no points, already closed).
var ErrUnavailable = errors.New("position source unavailable")

// FixHandler receives accepted raw fixes.
type FixHandler func(geo.Fix)

// ErrorHandler receives non-fatal source errors such as malformed lines.
type ErrorHandler func(error)

// Source produces fixes for one subscriber at a time.
type Source interface {
	Subscribe(onFix FixHandler, onError ErrorHandler) (Subscription, error)
}

// Subscription cancels delivery. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

var fixValidator = validator.New()

// ValidateFix checks coordinate ranges and a non-negative accuracy radius.
func ValidateFix(fix geo.Fix) error {
	if !fix.Point().Finite() {
		return fmt.Errorf("fix has non-finite coordinates")
	}
	if err := fixValidator.Struct(fix); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("fix %s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate fix: %w", err)
	}
	return nil
}

// FromConfig builds the source selected by cfg.Position. push is used for
// the "http" source and may be nil otherwise.
func FromConfig(cfg *config.Config, push *Push, logger *slog.Logger) (Source, error) {
	switch cfg.Position.Source {
	case "stdin", "":
		return NewStream("stdin", os.Stdin, logger), nil
	case "file":
		path := cfg.Position.Path
		return NewLines(path, func() (io.ReadCloser, error) {
			return os.Open(path)
		}, logger), nil
	case "gpx":
		return NewReplay(cfg.Position.Path, cfg.ReplayInterval(), cfg.Position.ReplayAccuracyMeters, logger), nil
	case "http":
		if push == nil {
			return nil, fmt.Errorf("%w: http source requires the API server", ErrUnavailable)
		}
		return push, nil
	default:
		return nil, fmt.Errorf("unknown position source %q", cfg.Position.Source)
	}
}
