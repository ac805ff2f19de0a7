package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
	"shotsync/internal/project"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage local and cloud projects",
	}
	projectsCmd.AddCommand(newProjectsListCommand(ctx))
	projectsCmd.AddCommand(newProjectsImportCommand(ctx))
	projectsCmd.AddCommand(newProjectsDeleteCommand(ctx))
	return projectsCmd
}

func newProjectsListCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				if refresh {
					if _, err := d.RefreshRemoteProjects(cmd.Context()); err != nil {
						return fmt.Errorf("refresh cloud projects: %w", err)
					}
				}
				summaries, err := d.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if summaries == nil {
					summaries = []project.Summary{}
				}
				return emit(cmd, jsonOutput, summaries, func(out io.Writer) {
					if len(summaries) == 0 {
						fmt.Fprintln(out, "No projects")
						return
					}
					projectsGrid(summaries).writeTo(out)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the cloud project list first")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func projectsGrid(summaries []project.Summary) *grid {
	g := newGrid("ID", "Name", "Shots", "Location", "Modified").alignRight(3)
	for _, s := range summaries {
		g.add(s.ID, s.Name, s.ShotCount, projectLocation(s), formatModified(s.LastModified))
	}
	return g
}

func projectLocation(s project.Summary) string {
	switch {
	case s.IsLocal && !s.IsCloudOnly:
		return "Local"
	case s.IsCloudOnly:
		return "Cloud Only"
	default:
		return "Unknown"
	}
}

func formatModified(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

func newProjectsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project-file>",
		Short: "Import a project document as a local project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				summary, err := d.ImportProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s): %d shots\n", summary.ID, summary.Name, summary.ShotCount)
				return nil
			})
		},
	}
}

func newProjectsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project locally and in the cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				if err := d.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
				return nil
			})
		},
	}
}
