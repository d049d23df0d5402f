package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"routekeeper/internal/export"
	"routekeeper/internal/geo"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

func newShareCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Work with route share links",
	}
	cmd.AddCommand(newShareDecodeCommand(ctx))
	return cmd
}

func newShareDecodeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var saveName string
	cmd := &cobra.Command{
		Use:   "decode LINK|TOKEN",
		Short: "Decode a share link back into its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			events, err := export.DecodeShareURL(args[0], cfg.Export.ShareParam)
			if err != nil {
				return err
			}
			tl := sharedTimeline(events)

			if name := strings.TrimSpace(saveName); name != "" {
				var index int
				err := ctx.withRepository(func(repo *sessions.Repository) error {
					var err error
					index, _, err = repo.Import(cmd.Context(), tl, name)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved as #%d %q\n", index, name)
			}

			if asJSON {
				return writeJSON(cmd, events)
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "Share link holds no events")
				return nil
			}
			fmt.Fprintln(out, renderEvents(events))
			fmt.Fprintf(out, "%d events, %.2f km\n", len(events), tl.TotalDistanceKm)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the decoded events as JSON")
	cmd.Flags().StringVar(&saveName, "save", "", "Save the decoded route as a session with this name")
	return cmd
}

// sharedTimeline rebuilds distance and elapsed time for decoded events. Share
// links carry events only.
func sharedTimeline(events []timeline.Event) timeline.Timeline {
	tl := timeline.Timeline{Events: events}
	var acc geo.Accumulator
	for _, ev := range timeline.Filter(events, timeline.KindLocation) {
		acc.Accept(ev.Coords)
	}
	tl.TotalDistanceKm = acc.TotalKm()
	if n := len(events); n > 1 {
		tl.ElapsedMs = events[n-1].Timestamp - events[0].Timestamp
	}
	return tl
}
