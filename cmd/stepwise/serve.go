package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/stepwise/internal/cli"
	httpAdapter "github.com/aretw0/stepwise/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves runs over a JSON API described by /openapi.yaml, with Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			f.Config.HTTP.Addr = addr
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := f.Ping(ctx); err != nil {
			return fmt.Errorf("store unavailable: %w", err)
		}
		svc, err := f.Service()
		if err != nil {
			return err
		}
		handler, err := httpAdapter.NewHandler(svc,
			httpAdapter.WithLogger(f.Logger),
			httpAdapter.WithMetrics(httpAdapter.NewMetrics()),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              f.Config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			f.Logger.Info("Starting Stepwise Server", "addr", srv.Addr, "store", f.Config.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case <-ctx.Done():
			f.Logger.Info("Start shutdown", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				f.Logger.Error("Graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			f.Logger.Info("Stepwise Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from http.addr)")
}
