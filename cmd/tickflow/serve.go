package main

import (
	"context"
	"errors"
	"fmt"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/nhle/tickflow/internal/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

			tasks, closeTasks, err := openTaskService(cmd.Context(), cfg, logger, lazyKeyring(cfg.Credentials))
			if err != nil {
				return err
			}

			apiCfg := api.Config{Tasks: tasks, Logger: logger}
			if accessLog {
				apiCfg.AccessLog = cmd.ErrOrStderr()
			}
			app := api.New(apiCfg)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening",
					"addr", cfg.Server.Addr,
					"backend", cfg.Store.Backend,
					"cache", cfg.Cache.Enabled,
				)
				if err := app.Listen(cfg.Server.Addr); err != nil {
					errCh <- err
				}
			}()

			wait := gfshutdown.GracefulShutdown(
				cmd.Context(),
				cfg.Server.ShutdownTimeout(),
				map[string]gfshutdown.Operation{
					// The store is closed only after in-flight requests drain.
					"http-server": func(ctx context.Context) error {
						logger.Info("shutting down http server")
						return errors.Join(app.ShutdownWithContext(ctx), closeTasks())
					},
				},
			)

			select {
			case err := <-errCh:
				_ = closeTasks()
				return fmt.Errorf("starting http server: %w", err)
			case code := <-wait:
				logger.Info("shutdown complete", "exit_code", code)
				if code != 0 {
					return fmt.Errorf("shutdown finished with exit code %d", code)
				}
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&accessLog, "access-log", true, "write one log line per request to stderr")
	return cmd
}
