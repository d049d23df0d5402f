package engine

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"routekeeper/internal/export"
	"routekeeper/internal/fileutil"
	"routekeeper/internal/timeline"
)

func (e *Engine) writeRescue(tl timeline.Timeline) (string, error) {
	if e.opts.RescueDir == "" {
		return "", errors.New("no rescue directory configured")
	}
	name := fmt.Sprintf("rescue-%s.json", e.now().UTC().Format("20060102T150405Z"))
	path := fileutil.UniquePath(filepath.Join(e.opts.RescueDir, name))
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return export.WriteJSON(w, tl.Events)
	})
	if err != nil {
		return "", fmt.Errorf("write rescue file: %w", err)
	}
	return path, nil
}
