package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/server"
	"github.com/MeKo-Tech/motorpass/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk HTTP and WebSocket server",
	Long: `Start an HTTP server for the kiosk front end.

The server provides the following endpoints:
  POST /v1/verify  - Verify a rider from an uploaded license image
  POST /v1/parse   - Parse license fields out of recognized text
  POST /v1/match   - Score a name against recognized text
  GET  /v1/capture - Live capture session over WebSocket
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  motorpass serve
  motorpass serve --port 8080
  motorpass serve --host 0.0.0.0 --port 3000 --requests-per-minute 30`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}
		timeout := cfg.Server.Timeout
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetDuration("timeout")
		}
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetDuration("shutdown-timeout")
		}
		requestsPerMinute := cfg.Server.RequestsPerMinute
		if cmd.Flags().Changed("requests-per-minute") {
			requestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
		}
		liveCapture, _ := cmd.Flags().GetBool("capture")

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}
		if requestsPerMinute < 0 {
			return fmt.Errorf("invalid requests per minute: %d", requestsPerMinute)
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		logger := slog.Default()
		opts := []server.Option{server.WithLogger(logger)}
		if p.cache != nil {
			opts = append(opts, server.WithCacheStats(p.cache))
		}
		if liveCapture {
			opts = append(opts, server.WithCapture(func(o ...capture.Option) *capture.Controller {
				return p.newController(cfg, append([]capture.Option{capture.WithLogger(logger)}, o...)...)
			}))
		}

		srv := server.New(server.Config{
			Host:              host,
			Port:              port,
			CORSOrigin:        corsOrigin,
			MaxUploadMB:       int64(maxUploadSize),
			Timeout:           timeout,
			RequestsPerMinute: requestsPerMinute,
			Version:           version.Version,
		}, p.verifier, opts...)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("Starting motorpass server", "addr", srv.Addr(), "capture", liveCapture, "ocr_engine", p.engine.Name())
		if err := srv.Run(ctx, shutdownTimeout); err != nil {
			return err
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Duration("timeout", 0, "request timeout (default from config, 30s)")
	serveCmd.Flags().Duration("shutdown-timeout", 0, "shutdown timeout (default from config, 10s)")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum verify requests per minute per client, 0 to disable")
	serveCmd.Flags().Bool("capture", true, "enable the live capture WebSocket")
}
