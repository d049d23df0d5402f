package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"routekeeper/internal/engine"
	"routekeeper/internal/ipc"
	"routekeeper/internal/preflight"
	"routekeeper/internal/stopwatch"
	"routekeeper/internal/timeline"
)

func newControlCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newTransitionCommand(ctx, "start", "Start a new route", (*ipc.Client).Start),
		newTransitionCommand(ctx, "pause", "Pause the route; fixes are ignored until resume", (*ipc.Client).Pause),
		newTransitionCommand(ctx, "resume", "Resume a paused route", (*ipc.Client).Resume),
		newTransitionCommand(ctx, "reset", "Abandon the route without saving", (*ipc.Client).Reset),
		newStopCommand(ctx),
		newNoteCommand(ctx),
		newAttachCommand(ctx),
		newTimelineCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and route status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, dialErr := ctx.dialClient()
			if dialErr != nil {
				if asJSON {
					return dialErr
				}
				return renderOfflineStatus(cmd, ctx, dialErr)
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp.Status)
			}

			st := resp.Status
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", st.PID), colorize))
			fmt.Fprintln(out, renderValueLine("Source", st.Source))
			if st.APIAddress != "" {
				fmt.Fprintln(out, renderValueLine("HTTP API", "http://"+st.APIAddress))
			}
			if !st.StartedAt.IsZero() {
				fmt.Fprintln(out, renderValueLine("Uptime", stopwatch.Format(time.Since(st.StartedAt))))
			}
			fmt.Fprintln(out, renderValueLine("Saved sessions", strconv.Itoa(st.Sessions)))
			if st.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Store", statusError, st.LastError, colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Route", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range routeLines(st.Engine, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	return cmd
}

func routeLines(st engine.Status, colorize bool) []string {
	lines := []string{
		renderStatusLine("State", stateKind(st.State), stateLabel(st.State), colorize),
		renderValueLine("Elapsed", st.ElapsedText),
		renderValueLine("Distance", fmt.Sprintf("%.2f km", st.DistanceKm)),
		renderValueLine("Events", strconv.Itoa(st.Events)),
	}
	if st.LastPoint != nil {
		lines = append(lines, renderValueLine("Last position", fmt.Sprintf("%.6f, %.6f", st.LastPoint.Lat, st.LastPoint.Lng)))
	}
	if !st.LastBackupAt.IsZero() {
		lines = append(lines, renderValueLine("Last backup", st.LastBackupAt.Local().Format(time.TimeOnly)))
	}
	if len(st.Verdicts) > 0 {
		lines = append(lines, renderValueLine("Fixes", formatVerdicts(st.Verdicts)))
	}
	if st.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, st.LastError, colorize))
	}
	return lines
}

func formatVerdicts(verdicts map[string]int) string {
	order := []string{"accepted", "low_confidence", "implausible_jump", "suspended", "invalid"}
	parts := make([]string, 0, len(verdicts))
	for _, key := range order {
		if n, ok := verdicts[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", key, n))
		}
	}
	return strings.Join(parts, " ")
}

// renderOfflineStatus reports preflight results when the daemon is unreachable.
func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext, dialErr error) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	fmt.Fprintln(out, renderValueLine("Detail", dialErr.Error()))
	fmt.Fprintln(out)

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range preflight.RunAll(cmd.Context(), cfg) {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return nil
}

func newTransitionCommand(ctx *commandContext, use, short string, call func(*ipc.Client) (*ipc.StateResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Route %s (%s, %.2f km)\n",
					resp.Engine.State, resp.Engine.ElapsedText, resp.Engine.DistanceKm)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var saveName string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Finish the route, optionally saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				save := cmd.Flags().Changed("save")
				resp, err := client.Stop(saveName, save)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				s := resp.Result.Summary
				fmt.Fprintf(out, "Route finished: %.2f km in %s, %d events\n", s.DistanceKm, s.ElapsedText, s.Events)
				switch {
				case resp.Result.Saved:
					fmt.Fprintf(out, "Saved as #%d %q\n", resp.Result.Index, resp.Result.Session.Name)
				case resp.SaveError != "":
					fmt.Fprintf(cmd.ErrOrStderr(), "Save failed: %s\n", resp.SaveError)
					if resp.Result.RescuePath != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "Route written to %s\n", resp.Result.RescuePath)
					}
					return fmt.Errorf("save route: %s", resp.SaveError)
				default:
					fmt.Fprintln(out, "Route discarded")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&saveName, "save", "", "Save the route under this name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the stop result as JSON")
	return cmd
}

func newNoteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "note TEXT...",
		Short: "Add a note at the current position",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Note(strings.Join(args, " "))
				if err != nil {
					return err
				}
				printEvent(cmd.OutOrStdout(), resp.Event)
				return nil
			})
		},
	}
}

func newAttachCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "attach FILE",
		Short: "Attach a photo, audio clip or video at the current position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, dataURL, err := readAttachment(args[0], kindFlag)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Attach(string(kind), dataURL)
				if err != nil {
					return err
				}
				printEvent(cmd.OutOrStdout(), resp.Event)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Attachment kind (photo, audio, video); detected from the file when empty")
	return cmd
}

// readAttachment loads path as a data URL and resolves its event kind from
// the detected media type unless kindFlag is set.
func readAttachment(path, kindFlag string) (timeline.Kind, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read attachment: %w", err)
	}
	mtype := mimetype.Detect(data)
	kind := kindFromMIME(mtype.String())
	if strings.TrimSpace(kindFlag) != "" {
		kind, err = timeline.ParseKind(strings.ToLower(strings.TrimSpace(kindFlag)))
		if err != nil {
			return "", "", err
		}
	}
	if kind == "" {
		return "", "", fmt.Errorf("cannot infer attachment kind from %s; pass --kind", mtype.String())
	}
	if kind == timeline.KindLocation || kind == timeline.KindNote {
		return "", "", fmt.Errorf("%s is not an attachment kind", kind)
	}
	mediaType, _, _ := strings.Cut(mtype.String(), ";")
	return kind, "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func kindFromMIME(mediaType string) timeline.Kind {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return timeline.KindPhoto
	case strings.HasPrefix(mediaType, "audio/"):
		return timeline.KindAudio
	case strings.HasPrefix(mediaType, "video/"):
		return timeline.KindVideo
	default:
		return ""
	}
}

func printEvent(out io.Writer, ev timeline.Event) {
	fmt.Fprintf(out, "Added %s at %.6f, %.6f (%s)\n", ev.Kind, ev.Coords.Lat, ev.Coords.Lng,
		time.UnixMilli(ev.Timestamp).Local().Format(time.TimeOnly))
}

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show the events of the live route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Timeline()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Timeline.Len() == 0 {
					fmt.Fprintf(out, "Route is %s with no events\n", resp.State)
					return nil
				}
				fmt.Fprintln(out, renderEvents(resp.Timeline.Events))
				fmt.Fprintf(out, "%s, %.2f km, %s\n", stateLabel(resp.State), resp.Timeline.TotalDistanceKm,
					stopwatch.Format(time.Duration(resp.Timeline.ElapsedMs)*time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the timeline as JSON")
	return cmd
}

func renderEvents(events []timeline.Event) string {
	rows := make([][]string, 0, len(events))
	for i, ev := range events {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			time.UnixMilli(ev.Timestamp).Local().Format(time.TimeOnly),
			string(ev.Kind),
			strconv.FormatFloat(ev.Coords.Lat, 'f', 6, 64),
			strconv.FormatFloat(ev.Coords.Lng, 'f', 6, 64),
			eventDetail(ev),
		})
	}
	return renderTable(
		[]string{"#", "Time", "Type", "Lat", "Lng", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func eventDetail(ev timeline.Event) string {
	switch ev.Kind {
	case timeline.KindLocation:
		return ""
	case timeline.KindNote:
		return ev.Text
	default:
		payload := ev.Payload()
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(payload, "data:"), ";")
		return fmt.Sprintf("%s, %d bytes", mediaType, len(payload))
	}
}
