package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
	"shotsync/internal/queuestore"
	"shotsync/internal/syncqueue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueAddBatchCommand(ctx))
	queueCmd.AddCommand(newQueueCleanupCommand(ctx))
	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				status := d.QueueStatus()
				return emit(cmd, jsonOutput, status, func(out io.Writer) {
					if status.Total == 0 {
						fmt.Fprintln(out, "Queue is empty")
						return
					}
					queueStatusGrid(status).writeTo(out)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func queueStatusGrid(status syncqueue.Status) *grid {
	counts := map[queuestore.Status]int{
		queuestore.StatusPending:    status.Pending,
		queuestore.StatusInProgress: status.InProgress,
		queuestore.StatusSynced:     status.Synced,
		queuestore.StatusFailed:     status.Failed,
	}
	g := newGrid("Status", "Count").alignRight(2)
	for _, st := range queuestore.AllStatuses() {
		if n := counts[st]; n > 0 {
			g.add(displayLabel(string(st)), n)
		}
	}
	return g
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make(map[queuestore.Status]struct{}, len(listStatuses))
			for _, value := range listStatuses {
				status, ok := queuestore.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter[status] = struct{}{}
			}
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				var tasks []queuestore.Task
				for _, task := range d.Tasks() {
					if len(filter) > 0 {
						if _, ok := filter[task.Status]; !ok {
							continue
						}
					}
					task.Payload = nil
					tasks = append(tasks, task)
				}
				if tasks == nil {
					tasks = []queuestore.Task{}
				}
				return emit(cmd, jsonOutput, tasks, func(out io.Writer) {
					if len(tasks) == 0 {
						fmt.Fprintln(out, "Queue is empty")
						return
					}
					queueListGrid(tasks).writeTo(out)
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func queueListGrid(tasks []queuestore.Task) *grid {
	g := newGrid("ID", "Kind", "Project", "Shots", "Status", "Retries", "Enqueued", "Error").alignRight(6)
	for _, task := range tasks {
		kind := string(task.Kind)
		if task.Migration {
			kind += " (migration)"
		}
		g.add(
			shortID(task.ID),
			kind,
			task.ProjectID,
			strings.Join(task.ShotIDs(), ","),
			displayLabel(string(task.Status)),
			task.Retries,
			task.EnqueuedAt.Local().Format(time.DateTime),
			truncate(task.Error, 48),
		)
	}
	return g
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <project-id> <shot-id> <image-file>",
		Short: "Queue a single shot image for upload",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := readBlob(args[2], args[1])
			if err != nil {
				return err
			}
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				id, err := d.QueueImageUpload(cmd.Context(), args[0], args[1], blob)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued upload %s\n", id)
				return nil
			})
		},
	}
}

func newQueueAddBatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-batch <project-id> <image-file>...",
		Short: "Queue several images as one task; shot ids come from file names",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs := make([]queuestore.Blob, 0, len(args)-1)
			for _, path := range args[1:] {
				shotID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				blob, err := readBlob(path, shotID)
				if err != nil {
					return err
				}
				blobs = append(blobs, blob)
			}
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				id, err := d.QueueBatchUpload(cmd.Context(), args[0], blobs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued batch %s (%d images)\n", id, len(blobs))
				return nil
			})
		},
	}
}

func newQueueCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <project-id> <shot-id> <asset-url>",
		Short: "Queue removal of a hosted asset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				id, err := d.QueueAssetCleanup(cmd.Context(), args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued cleanup %s\n", id)
				return nil
			})
		},
	}
}

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run one drain pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				pass := d.DrainOnce(cmd.Context())
				out := cmd.OutOrStdout()
				if pass.Skipped {
					fmt.Fprintf(out, "Drain skipped: %s\n", pass.SkipReason)
					return nil
				}
				fmt.Fprintf(out, "Drained %d tasks: %d synced, %d retrying, %d failed, %d deferred, %d no-op\n",
					pass.Considered, pass.Synced, pass.Retrying, pass.Failed, pass.Deferred, pass.NoOps)
				if pass.Pruned > 0 {
					fmt.Fprintf(out, "Pruned %d orphaned tasks\n", pass.Pruned)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reset failed tasks to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				n, err := d.RetryFailed(cmd.Context())
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed tasks to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d failed tasks\n", n)
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove synced tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				n, err := d.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d synced tasks\n", n)
				return nil
			})
		},
	}
}

func readBlob(path, shotID string) (queuestore.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return queuestore.Blob{}, fmt.Errorf("read image: %w", err)
	}
	return queuestore.Blob{
		ShotID:      shotID,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
