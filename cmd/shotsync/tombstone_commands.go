package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
)

func newTombstoneCommand(ctx *commandContext) *cobra.Command {
	tombCmd := &cobra.Command{
		Use:   "tombstone",
		Short: "Manage deleted-shot tombstones",
	}

	tombCmd.AddCommand(&cobra.Command{
		Use:   "add <shot-id>",
		Short: "Mark a shot deleted and cancel its queued uploads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				if err := d.MarkShotDeleted(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Shot %s marked deleted\n", args[0])
				return nil
			})
		},
	})

	tombCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tombstoned shots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				ids := d.Tombstones()
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tombstones")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	})

	tombCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every tombstone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				n, err := d.ClearTombstones(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tombstones\n", n)
				return nil
			})
		},
	})

	return tombCmd
}
