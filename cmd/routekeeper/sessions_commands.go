package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"routekeeper/internal/sessions"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and manage saved routes",
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsShowCommand(ctx))
	cmd.AddCommand(newSessionsClearCommand(ctx))
	return cmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved routes in the order they were saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRepository(func(repo *sessions.Repository) error {
				list, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					if list == nil {
						list = []sessions.Session{}
					}
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No saved sessions")
					return nil
				}
				rows := make([][]string, 0, len(list))
				var total float64
				for i, s := range list {
					total += s.Distance()
					rows = append(rows, sessionRow(i, s))
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Name", "Saved", "Elapsed", "Distance", "Events", "ID"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
					"", strconv.Itoa(len(list))+" sessions", "", "", fmt.Sprintf("%.2f km", total),
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output sessions as JSON")
	return cmd
}

func sessionRow(index int, s sessions.Session) []string {
	return []string{
		strconv.Itoa(index),
		s.Name,
		formatSavedAt(s),
		s.Elapsed,
		s.TotalDistanceKm + " km",
		strconv.Itoa(len(s.Events)),
		s.ID,
	}
}

func formatSavedAt(s sessions.Session) string {
	t := s.SavedTime()
	if t.IsZero() {
		return s.SavedAt
	}
	return t.Local().Format(time.DateTime)
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show REF",
		Short: "Show a saved route by index or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRepository(func(repo *sessions.Repository) error {
				view, err := repo.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view.Session)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(view.Session.Name, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderValueLine("Index", strconv.Itoa(view.Index)))
				fmt.Fprintln(out, renderValueLine("ID", view.Session.ID))
				fmt.Fprintln(out, renderValueLine("Saved", formatSavedAt(view.Session)))
				fmt.Fprintln(out, renderValueLine("Elapsed", view.Session.Elapsed))
				fmt.Fprintln(out, renderValueLine("Distance", view.Session.TotalDistanceKm+" km"))
				fmt.Fprintln(out)
				if len(view.Session.Events) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				fmt.Fprintln(out, renderEvents(view.Session.Events))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the session as JSON")
	return cmd
}

func newSessionsClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved route and the backup slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete all sessions without --yes")
			}
			return ctx.withRepository(func(repo *sessions.Repository) error {
				removed, err := repo.ClearAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sessions\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm deletion")
	return cmd
}
