package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/engine"
	"caseflow/internal/httpapi"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow engine HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}

func runServer(cmdCtx context.Context, cfg *config.Config) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "caseflow.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another caseflow server is already running")
	}
	defer func() { _ = lock.Unlock() }()

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	srv, err := httpapi.New(eng, logger)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}
	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("caseflow started",
		logging.String("address", srv.Addr()),
		logging.String("database", st.Path()),
		logging.Bool("auth", cfg.Server.APIToken != ""),
	)

	<-signalCtx.Done()
	logger.Info("caseflow stopping")
	srv.Stop()
	return nil
}
