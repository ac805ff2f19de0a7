package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
	"shotsync/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var drain bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Push local-only projects to the cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				result, err := d.SyncGuestProjectsToCloud(cmd.Context())
				if err != nil {
					return err
				}
				if drain && result.Migrations > 0 {
					d.DrainOnce(cmd.Context())
				}
				return emit(cmd, jsonOutput, reconcileJSON(result), func(out io.Writer) {
					if !result.Ran {
						fmt.Fprintln(out, "Reconciliation already in progress")
						return
					}
					if len(result.Projects) == 0 {
						fmt.Fprintln(out, "No local projects to reconcile")
						return
					}
					reconcileGrid(result).writeTo(out)
					fmt.Fprintf(out, "Synced %d, skipped %d, failed %d\n", result.Synced, result.Skipped, result.Failed)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&drain, "drain", true, "Upload migrated images before exiting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func reconcileGrid(result reconcile.Result) *grid {
	g := newGrid("Project", "Name", "Result", "Detail", "Images").alignRight(5)
	for _, p := range result.Projects {
		outcome := "synced"
		detail := ""
		switch {
		case p.Err != nil:
			outcome = "failed"
			detail = truncate(p.Err.Error(), 48)
		case p.Decision.Action == reconcile.ActionSkip:
			outcome = "skipped"
			detail = string(p.Decision.Class)
		}
		g.add(p.ProjectID, p.Name, displayLabel(outcome), detail, p.Migrations)
	}
	return g
}

type reconcileProjectJSON struct {
	ProjectID  string `json:"projectId"`
	Name       string `json:"name"`
	Action     string `json:"action"`
	Class      string `json:"class,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Migrations int    `json:"migrations"`
}

type reconcileResultJSON struct {
	Ran      bool                   `json:"ran"`
	Synced   int                    `json:"synced"`
	Skipped  int                    `json:"skipped"`
	Failed   int                    `json:"failed"`
	Projects []reconcileProjectJSON `json:"projects"`
}

func reconcileJSON(result reconcile.Result) reconcileResultJSON {
	out := reconcileResultJSON{
		Ran:      result.Ran,
		Synced:   result.Synced,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Projects: make([]reconcileProjectJSON, 0, len(result.Projects)),
	}
	for _, p := range result.Projects {
		entry := reconcileProjectJSON{
			ProjectID:  p.ProjectID,
			Name:       p.Name,
			Action:     string(p.Decision.Action),
			Class:      string(p.Decision.Class),
			Reason:     p.Decision.Reason,
			Migrations: p.Migrations,
		}
		if p.Err != nil {
			entry.Error = p.Err.Error()
		}
		out.Projects = append(out.Projects, entry)
	}
	return out
}
