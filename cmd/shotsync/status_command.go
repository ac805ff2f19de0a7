package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				status := d.Status(cmd.Context())
				return emit(cmd, jsonOutput, status, func(out io.Writer) {
					fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
