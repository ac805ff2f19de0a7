package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
)

func newHydrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hydrate <project-id>",
		Short: "Download a cloud project and its images for offline use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				report, err := d.LoadFullProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.AlreadyLocal {
					fmt.Fprintf(out, "Project %s is already available offline\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Loaded %s: %d pages, %d shots, %d images\n",
					args[0], report.Pages, report.Shots, report.Downloaded)
				if report.DownloadFailed > 0 {
					fmt.Fprintf(out, "%d images could not be downloaded and will load from the cloud\n", report.DownloadFailed)
				}
				return nil
			})
		},
	}
}
