package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/di"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

Query settings and the log level are reloaded when the --config file
changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				if addr == "" {
					addr = c.Config.Server.Addr
				}
				return serve(cmd.Context(), c, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}

// serve runs the server until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, c *di.Container, addr string) error {
	cfg := c.Config.Server
	srv := &http.Server{
		Addr:         addr,
		Handler:      c.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("backend", c.Config.Backend.Kind),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.Logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
