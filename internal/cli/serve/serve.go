// Package serve implements the serve command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-sampler/internal/cli/helpers"
	"github.com/coral-mesh/coral-sampler/internal/config"
	"github.com/coral-mesh/coral-sampler/internal/workload"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/httpsampler"
	"github.com/coral-mesh/coral-sampler/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		listen  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve on-demand CPU profiles over HTTP",
		Long: `Start an HTTP server exposing:

  /debug/coral-sampler/profile  run a session (?seconds=10&hz=99&format=folded)
  /debug/coral-sampler/status   current session state
  /metrics                      prometheus metrics
  /healthz                      liveness

The built-in workload can run in the background so profiles have something
to show.

Examples:
  coral-sampler serve --listen localhost:6061 --workers 2
  curl 'localhost:6061/debug/coral-sampler/profile?seconds=5' | flamegraph.pl > cpu.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.ListenAddr = listen
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workload.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := helpers.NewLogger(cmd, cfg)

			lis, err := net.Listen("tcp", cfg.Server.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddr, err)
			}

			return Run(cmd.Context(), lis, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config: localhost:6061)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Background workload goroutines")

	return cmd
}

// NewMux wires the profiling, metrics and health endpoints.
func NewMux(cfg *config.Config, logger zerolog.Logger) (*http.ServeMux, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg, err := helpers.NewRegistry(cfg, logger, promReg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	httpsampler.Register(mux, reg, logger)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux, nil
}

// Run serves on lis until ctx is done, then shuts the server down.
func Run(ctx context.Context, lis net.Listener, cfg *config.Config, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "server").Logger()

	mux, err := NewMux(cfg, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Profile requests block for their whole session; tie them to ctx so
	// shutdown ends them early instead of waiting.
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if cfg.Workload.Workers > 0 {
		go func() {
			if _, err := workload.Run(ctx, workload.Config{Workers: cfg.Workload.Workers, Logger: logger}); err != nil {
				logger.Error().Err(err).Msg("Workload failed")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", lis.Addr().String()).
			Str("version", version.String()).
			Msg("Sampler server listening")
		serveErr <- server.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Stopping sampler server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}
