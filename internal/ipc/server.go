package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"routekeeper/internal/daemon"
	"routekeeper/internal/engine"
	"routekeeper/internal/logging"
	"routekeeper/internal/timeline"
)

// ServiceName is the RPC service prefix.
const ServiceName = "Routekeeper"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI commands may fail to reach the daemon"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Connected clients are
// served until they hang up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse CLI commands"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Start(_ StartRequest, resp *StateResponse) error {
	s.logger.Debug("tracking start requested")
	if err := s.daemon.StartTracking(s.ctx); err != nil {
		return encodeError(err)
	}
	resp.Engine = s.daemon.Engine().Status()
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *StateResponse) error {
	if err := s.daemon.Engine().Pause(); err != nil {
		return encodeError(err)
	}
	resp.Engine = s.daemon.Engine().Status()
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *StateResponse) error {
	if err := s.daemon.Engine().Resume(); err != nil {
		return encodeError(err)
	}
	resp.Engine = s.daemon.Engine().Status()
	return nil
}

func (s *service) Reset(_ ResetRequest, resp *StateResponse) error {
	if err := s.daemon.Engine().Reset(s.ctx); err != nil {
		return encodeError(err)
	}
	resp.Engine = s.daemon.Engine().Status()
	return nil
}

func (s *service) Stop(req StopRequest, resp *StopResponse) error {
	s.logger.Debug("tracking stop requested", logging.Bool("save", req.Save))
	result, err := s.daemon.StopTracking(s.ctx, req.Name, req.Save)
	if errors.Is(err, engine.ErrInvalidTransition) || errors.Is(err, engine.ErrClosed) {
		return encodeError(err)
	}
	resp.Result = result
	if err != nil {
		resp.SaveError = err.Error()
	}
	return nil
}

func (s *service) Note(req NoteRequest, resp *EventResponse) error {
	ev, err := s.daemon.Attach(timeline.KindNote, req.Text)
	if err != nil {
		return encodeError(err)
	}
	resp.Event = ev
	return nil
}

func (s *service) Attach(req AttachRequest, resp *EventResponse) error {
	kind, err := timeline.ParseKind(req.Kind)
	if err != nil {
		return encodeError(fmt.Errorf("%w: %v", timeline.ErrInvalidEvent, err))
	}
	ev, err := s.daemon.Attach(kind, req.Data)
	if err != nil {
		return encodeError(err)
	}
	s.logger.Info("attachment added",
		logging.String(logging.FieldEventType, "attachment_added"),
		logging.String("kind", string(kind)),
		logging.Int("bytes", len(req.Data)))
	resp.Event = ev
	return nil
}

func (s *service) Timeline(_ TimelineRequest, resp *TimelineResponse) error {
	eng := s.daemon.Engine()
	resp.State = eng.State()
	resp.Timeline = eng.Timeline()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return encodeError(err)
	}
	resp.Sent = sent
	if sent {
		resp.Message = "test notification sent"
	} else {
		resp.Message = "notifications disabled (set notifications.ntfy_topic)"
	}
	return nil
}
