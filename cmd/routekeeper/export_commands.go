package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"routekeeper/internal/export"
	"routekeeper/internal/fileutil"
	"routekeeper/internal/ipc"
	"routekeeper/internal/sessions"
	"routekeeper/internal/timeline"
)

// exportSource is a route picked for export, either saved or live.
type exportSource struct {
	Name     string
	SavedAt  time.Time
	Timeline timeline.Timeline
}

type exportFormat struct {
	name  string
	short string
	ext   string
	write func(w io.Writer, src exportSource, cfg exportSettings) error
}

type exportSettings struct {
	gpxCreator string
}

var exportFormats = []exportFormat{
	{
		name:  "json",
		short: "Export a route as a JSON array of events",
		ext:   "json",
		write: func(w io.Writer, src exportSource, _ exportSettings) error {
			return export.WriteJSON(w, src.Timeline.Events)
		},
	},
	{
		name:  "gpx",
		short: "Export a route as a GPX 1.1 track",
		ext:   "gpx",
		write: func(w io.Writer, src exportSource, cfg exportSettings) error {
			return export.WriteGPX(w, src.Timeline.Events, export.GPXOptions{Creator: cfg.gpxCreator, Name: src.Name})
		},
	},
	{
		name:  "geojson",
		short: "Export a route as a GeoJSON feature collection",
		ext:   "geojson",
		write: func(w io.Writer, src exportSource, _ exportSettings) error {
			return export.WriteGeoJSON(w, src.Timeline.Events, src.Name, src.Timeline.TotalDistanceKm)
		},
	},
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved or live routes",
	}
	for _, format := range exportFormats {
		cmd.AddCommand(newExportFormatCommand(ctx, format))
	}
	cmd.AddCommand(newExportShareCommand(ctx))
	cmd.AddCommand(newExportBundleCommand(ctx))
	return cmd
}

func newExportFormatCommand(ctx *commandContext, format exportFormat) *cobra.Command {
	var output string
	var live bool
	cmd := &cobra.Command{
		Use:   format.name + " [REF]",
		Short: format.short,
		Long: format.short + `.

REF is a session index (0 is the oldest) or ID. With --live the route
currently held by the daemon is exported instead. Output goes to stdout
unless --output is given; "-o ." writes a generated file name into the
export directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src, err := ctx.exportSource(cmd.Context(), args, live)
			if err != nil {
				return err
			}
			settings := exportSettings{gpxCreator: cfg.Export.GPXCreator}

			target := strings.TrimSpace(output)
			if target == "" || target == "-" {
				return format.write(cmd.OutOrStdout(), src, settings)
			}
			if target == "." {
				target = fileutil.UniquePath(filepath.Join(cfg.Paths.ExportDir, export.FileName(src.Name, src.SavedAt, format.ext)))
			}
			err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
				return format.write(w, src, settings)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&live, "live", false, "Export the daemon's live route")
	return cmd
}

func newExportShareCommand(ctx *commandContext) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "share [REF]",
		Short: "Print a share link carrying the whole route",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Export.ShareBaseURL) == "" {
				return errors.New("export.share_base_url is not configured")
			}
			src, err := ctx.exportSource(cmd.Context(), args, live)
			if err != nil {
				return err
			}
			link, err := export.ShareURL(cfg.Export.ShareBaseURL, cfg.Export.ShareParam, src.Timeline.Events)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Share the daemon's live route")
	return cmd
}

func newExportBundleCommand(ctx *commandContext) *cobra.Command {
	var output string
	var all bool
	var title string
	cmd := &cobra.Command{
		Use:   "bundle [REF...]",
		Short: "Write saved routes, notes and media into a zip archive",
		Long: `Write saved routes into a zip archive with GPX, HTML and media files.

Pass session references or --all. Sessions without any recorded
position are skipped with a warning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass session references or --all (but not both)")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var items []export.BundleItem
			err = ctx.withRepository(func(repo *sessions.Repository) error {
				if all {
					list, err := repo.List(cmd.Context())
					if err != nil {
						return err
					}
					for _, s := range list {
						items = append(items, export.ItemFromSession(s))
					}
					return nil
				}
				for _, ref := range args {
					view, err := repo.Resolve(cmd.Context(), ref)
					if err != nil {
						return err
					}
					items = append(items, export.ItemFromSession(view.Session))
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return export.ErrEmptyExportSource
			}

			bundleTitle := strings.TrimSpace(title)
			if bundleTitle == "" {
				bundleTitle = "Routes"
				if len(items) == 1 {
					bundleTitle = items[0].Name
				}
			}
			target := strings.TrimSpace(output)
			if target == "" {
				target = fileutil.UniquePath(filepath.Join(cfg.Paths.ExportDir, export.FileName(bundleTitle, time.Now(), "zip")))
			}

			var report export.BundleReport
			err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
				var werr error
				report, werr = export.WriteBundle(w, items, export.BundleOptions{
					Title:      bundleTitle,
					GPXCreator: cfg.Export.GPXCreator,
					Logger:     ctx.logger(),
				})
				return werr
			})
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			for _, warning := range report.Warnings {
				fmt.Fprintf(stderr, "warning: %s\n", warning)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d routes, %d files", target, len(report.Entries), report.Files)
			if len(report.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", skipped %s", strings.Join(report.Skipped, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), ")")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (defaults to the export directory)")
	cmd.Flags().BoolVar(&all, "all", false, "Bundle every saved session")
	cmd.Flags().StringVar(&title, "title", "", "Title shown on the bundle index page")
	return cmd
}

// exportSource loads the saved session named by args[0], or the daemon's
// live route when live is set.
func (c *commandContext) exportSource(ctx context.Context, args []string, live bool) (exportSource, error) {
	if live {
		if len(args) > 0 {
			return exportSource{}, errors.New("--live does not take a session reference")
		}
		var src exportSource
		err := c.withClient(func(client *ipc.Client) error {
			resp, err := client.Timeline()
			if err != nil {
				return err
			}
			src = exportSource{Name: "Live route", SavedAt: time.Now(), Timeline: resp.Timeline}
			return nil
		})
		return src, err
	}
	if len(args) == 0 {
		return exportSource{}, errors.New("session reference required (or --live)")
	}
	var src exportSource
	err := c.withRepository(func(repo *sessions.Repository) error {
		view, err := repo.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		src = exportSource{Name: view.Session.Name, SavedAt: view.Session.SavedTime(), Timeline: view.Timeline}
		return nil
	})
	return src, err
}
