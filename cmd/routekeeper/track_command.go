package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"routekeeper/internal/daemon"
	"routekeeper/internal/engine"
	"routekeeper/internal/ipc"
	"routekeeper/internal/kvstore"
	"routekeeper/internal/logging"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	var noStart bool

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run the tracking daemon in the foreground",
		Long: `Run the tracking daemon in the foreground.

The daemon restores or discards an interrupted route according to
tracking.recovery, then starts a new route unless --no-start is given.
It serves control commands on the Unix socket and the HTTP API on
paths.api_bind until interrupted. An interrupted route stays in the
backup slot and is offered for recovery on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, ctx, !noStart)
		},
	}
	cmd.Flags().BoolVar(&noStart, "no-start", false, "Wait for a start command instead of tracking immediately")
	return cmd
}

func runTrack(cmd *cobra.Command, ctx *commandContext, startTracking bool) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := kvstore.Open(cfg.StorePath())
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer store.Close()

	var opts []daemon.Option
	if cfg.Position.Source != "stdin" && isInteractive(os.Stdin) {
		opts = append(opts, daemon.WithPrompt(recoveryPrompt(os.Stdin, cmd.ErrOrStderr())))
	}
	d, err := daemon.New(cfg, store, logger, opts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	outcome, err := d.Begin(signalCtx, startTracking)
	if err != nil {
		return err
	}
	printBegin(cmd.ErrOrStderr(), outcome, d.Status(signalCtx))

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("routekeeper daemon shutting down")
	return nil
}

// recoveryPrompt asks on out and reads a yes/no answer from in. An empty
// answer restores.
func recoveryPrompt(in io.Reader, out io.Writer) engine.RecoveryDecider {
	reader := bufio.NewReader(in)
	return func(s engine.Summary) bool {
		fmt.Fprintf(out, "Restore interrupted route (%d events, %.2f km, %s)? [Y/n] ",
			s.Events, s.DistanceKm, s.ElapsedText)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "n", "no":
			return false
		default:
			return true
		}
	}
}

func printBegin(out io.Writer, outcome engine.Recovery, st daemon.Status) {
	switch outcome {
	case engine.Restored:
		fmt.Fprintf(out, "Restored interrupted route: %d events, %.2f km\n", st.Engine.Events, st.Engine.DistanceKm)
	case engine.Declined:
		fmt.Fprintln(out, "Interrupted route discarded")
	case engine.DiscardedCorrupt:
		fmt.Fprintln(out, "Backup was unreadable and has been discarded")
	}
	fmt.Fprintf(out, "Routekeeper %s (source %s, socket %s", st.Engine.State, st.Source, st.SocketPath)
	if st.APIAddress != "" {
		fmt.Fprintf(out, ", api http://%s", st.APIAddress)
	}
	fmt.Fprintln(out, ")")
}
