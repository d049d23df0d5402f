package ipc

import (
	"errors"
	"fmt"
	"net/rpc"
	"strings"

	"routekeeper/internal/engine"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

// errorCodes tags errors crossing the socket so the client can restore the
// sentinel for errors.Is.
var errorCodes = []struct {
	code string
	err  error
}{
	{"transition", engine.ErrInvalidTransition},
	{"capability", engine.ErrCapabilityUnavailable},
	{"no_position", engine.ErrNoPosition},
	{"closed", engine.ErrClosed},
	{"invalid_event", timeline.ErrInvalidEvent},
	{"name_required", sessions.ErrNameRequired},
	{"not_found", sessions.ErrNotFound},
}

// RemoteError is an error returned by the daemon.
type RemoteError struct {
	Code    string
	Message string
	kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.kind }

// encodeError prefixes err with its code.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return fmt.Errorf("[%s] %s", c.code, err.Error())
		}
	}
	return err
}

// decodeError turns an rpc.ServerError back into a RemoteError.
func decodeError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	remote := &RemoteError{Message: msg}
	if strings.HasPrefix(msg, "[") {
		if end := strings.Index(msg, "] "); end > 0 {
			remote.Code = msg[1:end]
			remote.Message = msg[end+2:]
		}
	}
	for _, c := range errorCodes {
		if c.code == remote.Code {
			remote.kind = c.err
			break
		}
	}
	return remote
}
