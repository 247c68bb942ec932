package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/server"
	"github.com/spf13/cobra"
)

// rateLimitIdle is how long a client may stay silent before its limiter is dropped.
const rateLimitIdle = 10 * time.Minute

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the segmentation API",
	Long: `Start an HTTP server that provides segmentation endpoints.

The server provides the following endpoints:
  POST /segment    - Segment an uploaded image (multipart: image, mask, rect, format)
  GET  /ws/segment - WebSocket with per-iteration progress
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  cutout serve
  cutout serve --port 8080
  cutout serve --host 0.0.0.0 --port 3000 --rate-limit 2 --rate-burst 5`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	d := config.DefaultConfig()
	serveCmd.Flags().StringP("host", "H", d.Server.Host, "server host")
	serveCmd.Flags().IntP("port", "p", d.Server.Port, "server port")
	serveCmd.Flags().String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", d.Server.MaxUploadMB, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", d.Server.TimeoutSec, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", d.Server.ShutdownTimeout, "shutdown timeout in seconds")
	serveCmd.Flags().Int("max-iterations", d.Server.MaxIterations, "largest iteration count a request may ask for")
	serveCmd.Flags().Float64("rate-limit", d.Server.RateLimit, "requests per second per client (0 disables)")
	serveCmd.Flags().Int("rate-burst", d.Server.RateBurst, "burst size per client")
	addEngineFlags(serveCmd)
}

// serverConfig merges the configuration with the serve flags that were set.
func serverConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, int, error) {
	f := cmd.Flags()
	applyEngineFlags(cmd, cfg)
	s := cfg.Server
	if f.Changed("host") {
		s.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		s.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		s.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		s.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		s.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("max-iterations") {
		s.MaxIterations, _ = f.GetInt("max-iterations")
	}
	if f.Changed("rate-limit") {
		s.RateLimit, _ = f.GetFloat64("rate-limit")
	}
	if f.Changed("rate-burst") {
		s.RateBurst, _ = f.GetInt("rate-burst")
	}
	cfg.Server = s

	if s.Port < 1 || s.Port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	if err := cfg.Validate(); err != nil {
		return server.Config{}, 0, err
	}

	return server.Config{
		Host:          s.Host,
		Port:          s.Port,
		CORSOrigin:    s.CORSOrigin,
		MaxUploadMB:   int64(s.MaxUploadMB),
		TimeoutSec:    s.TimeoutSec,
		MaxIterations: s.MaxIterations,
		RateLimit:     s.RateLimit,
		RateBurst:     s.RateBurst,
		Pipeline:      cfg.ToPipelineConfig(cfg.Batch.Margin),
	}, s.ShutdownTimeout, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	sc, shutdownTimeout, err := serverConfig(cmd, GetConfig())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
	}

	go func() {
		slog.Info("Starting segmentation server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	if rl := srv.RateLimiter(); rl != nil {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := rl.Cleanup(rateLimitIdle); n > 0 {
						slog.Debug("Dropped idle rate limiters", "count", n)
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
