package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shotsync/internal/daemon"
	"shotsync/internal/logging"
	"shotsync/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var reconcileOnStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync service in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, offline, reconcileOnStart)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Start with connectivity marked offline (SIGUSR1 goes online, SIGUSR2 offline)")
	cmd.Flags().BoolVar(&reconcileOnStart, "reconcile", false, "Push local-only projects to the cloud after startup")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, offline, reconcileOnStart bool) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	runCtx := services.WithRequestID(signalCtx, uuid.NewString())
	logger = logging.WithContext(runCtx, logger)

	d, err := daemon.New(cfg, logger, ctx.daemonOptions...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		return err
	}
	if offline {
		d.SetOnline(runCtx, false)
	}
	connSignals := make(chan os.Signal, 1)
	signal.Notify(connSignals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(connSignals)
	go watchConnectivity(runCtx, d, connSignals, logger)
	if reconcileOnStart {
		result, err := d.SyncGuestProjectsToCloud(runCtx)
		if err != nil {
			logger.Warn("startup reconcile failed", logging.Error(err))
		} else {
			logger.Info("startup reconcile finished",
				logging.Int("synced", result.Synced),
				logging.Int("skipped", result.Skipped),
				logging.Int("failed", result.Failed),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("shotsync shutting down")
	return nil
}

type connectivity interface {
	SetOnline(ctx context.Context, online bool)
	Online() bool
}

// watchConnectivity flips connectivity on SIGUSR1 (online) and SIGUSR2
// (offline) until ctx ends.
func watchConnectivity(ctx context.Context, conn connectivity, signals <-chan os.Signal, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			online := sig == syscall.SIGUSR1
			if conn.Online() == online {
				continue
			}
			logger.Info("connectivity changed by signal",
				logging.String("signal", sig.String()),
				logging.Bool("online", online),
			)
			conn.SetOnline(ctx, online)
		}
	}
}
