package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the summarization API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			lock := flock.New(rt.cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another recap instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			staleAfter := time.Duration(rt.cfg.Workflow.StaleAfterSeconds) * time.Second
			reclaimed, err := rt.store.ReclaimStale(cmd.Context(), time.Now().Add(-staleAfter))
			if err != nil {
				return fmt.Errorf("reclaim stale requests: %w", err)
			}
			if reclaimed > 0 {
				rt.logger.Info("reclaimed stale requests", logging.Int64("count", reclaimed))
			}

			server := api.NewServer(rt.cfg, rt.orch, rt.notifier, rt.store, rt.logger)
			if server == nil {
				return errors.New("no api bind address configured")
			}

			signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Start(signalCtx); err != nil {
				return err
			}
			rt.logger.Info("recap serving", logging.String("lock", rt.cfg.LockPath()))

			<-signalCtx.Done()
			server.Stop()
			rt.logger.Info("recap stopped")
			return nil
		},
	}
}
