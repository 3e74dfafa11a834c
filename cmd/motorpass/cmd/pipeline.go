package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/config"
	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
	"github.com/MeKo-Tech/motorpass/internal/report"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// newEngine builds the local OCR engine. Tests replace it.
var newEngine = recognizer.NewDefaultEngine

// pipeline is everything a command needs to read and verify a license.
type pipeline struct {
	engine    recognizer.Engine
	cache     *cache.Cache
	extractor *extract.Extractor
	verifier  *verify.Engine
}

// buildPipeline wires cache, probe and both recognizers from cfg. The remote
// recognizer is left out when no API key is configured.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	engine, err := newEngine(cfg.Local.Language)
	if err != nil {
		return nil, fmt.Errorf("local OCR engine: %w", err)
	}
	logger := slog.Default()

	opts := []extract.Option{extract.WithLogger(logger)}
	p := &pipeline{engine: engine}

	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache.Dir, cfg.Cache.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		p.cache = c
		opts = append(opts, extract.WithCache(c))
	}

	var remote extract.RemoteRecognizer
	if r := recognizer.NewRemote(cfg.ToRemoteConfig(), nil); r.Configured() {
		remote = r
		if cfg.Probe.Address != "" {
			opts = append(opts, extract.WithProbe(recognizer.NewProbe(cfg.Probe.Address, cfg.Probe.Timeout, cfg.Probe.TTL)))
		}
	} else {
		logger.Debug("remote OCR disabled: no API key configured")
	}

	local := recognizer.NewLocal(engine, cfg.ToLocalConfig())
	p.extractor = extract.New(remote, local, opts...)
	p.verifier = verify.NewEngine(p.extractor, cfg.ToEngineConfig())
	return p, nil
}

// newController builds a capture controller over the fast keyword scanner.
func (p *pipeline) newController(cfg *config.Config, opts ...capture.Option) *capture.Controller {
	scanner := capture.NewKeywordScanner(p.engine, cfg.Capture.ScanTimeout)
	return capture.NewController(scanner, cfg.ToCaptureConfig(), opts...)
}

// outputFormat prefers an explicit --format over the configured one.
func outputFormat(cmd *cobra.Command, cfg *config.Config) (string, error) {
	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	format = strings.ToLower(format)
	if !slices.Contains(report.Formats, format) {
		return "", fmt.Errorf("unsupported format %q (use %s)", format, strings.Join(report.Formats, ", "))
	}
	return format, nil
}

// writeOutput renders v to --output or stdout.
func writeOutput(cmd *cobra.Command, cfg *config.Config, v any) error {
	format, err := outputFormat(cmd, cfg)
	if err != nil {
		return err
	}
	return writeOutputAs(cmd, cfg, format, v)
}

func writeOutputAs(cmd *cobra.Command, cfg *config.Config, format string, v any) error {
	file := cfg.Output.File
	if cmd.Flags().Changed("output") {
		file, _ = cmd.Flags().GetString("output")
	}

	var w io.Writer = cmd.OutOrStdout()
	if file != "" {
		f, err := os.Create(file) //nolint:gosec // G304: output path comes from the operator
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return report.Write(w, format, v)
}
