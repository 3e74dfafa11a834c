package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// Valid enumerations.
var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validOutputFormats = []string{"text", "json", "yaml"}
)

// DefaultConfig returns a configuration with the kiosk defaults.
func DefaultConfig() Config {
	capt := capture.DefaultConfig()
	remote := recognizer.DefaultRemoteConfig()
	local := recognizer.DefaultLocalConfig()
	engine := verify.DefaultEngineConfig()

	return Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			CheckInterval:   capt.CheckInterval,
			StabilityFrames: capt.StabilityFrames,
			HistorySize:     capt.HistorySize,
			ROIWidth:        capt.ROIWidth,
			ROIHeight:       capt.ROIHeight,
			MinGreenTime:    capt.MinGreenTime,
			CaptureDelay:    capt.CaptureDelay,
			SessionTimeout:  capt.SessionTimeout,
			ScanTimeout:     capture.DefaultScanTimeout,
		},
		Remote: RemoteConfig{
			Endpoint:          remote.Endpoint,
			Language:          remote.Language,
			EngineVersion:     remote.EngineVersion,
			Timeout:           remote.Timeout,
			MaxSide:           remote.MaxSide,
			JPEGQuality:       remote.JPEGQuality,
			RequestsPerMinute: 30,
		},
		Local: LocalConfig{
			Language:       "eng",
			AttemptTimeout: local.AttemptTimeout,
			Budget:         local.Budget,
			GuestBudget:    local.GuestBudget,
		},
		Probe: ProbeConfig{
			Address: recognizer.DefaultProbeAddr,
			Timeout: recognizer.DefaultProbeTimeout,
			TTL:     recognizer.DefaultProbeTTL,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        defaultCacheDir(),
			MaxEntries: cache.DefaultMaxEntries,
		},
		Verify: VerifyConfig{
			MinCredentialConfidence: engine.MinCredentialConfidence,
			CheckParsedExpiration:   engine.CheckParsedExpiration,
		},
		Output: OutputConfig{Format: "text"},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			Timeout:           30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestsPerMinute: 60,
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "motorpass", "ocr")
	}
	return filepath.Join(os.TempDir(), "motorpass-ocr-cache")
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validOutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validOutputFormats, ", "))
	}

	if err := validateFraction(c.Capture.ROIWidth, "capture.roi_width"); err != nil {
		return err
	}
	if err := validateFraction(c.Capture.ROIHeight, "capture.roi_height"); err != nil {
		return err
	}
	if c.Capture.CheckInterval <= 0 {
		return fmt.Errorf("invalid capture check interval: %d (must be positive)", c.Capture.CheckInterval)
	}
	if c.Capture.StabilityFrames <= 0 {
		return fmt.Errorf("invalid capture stability frames: %d (must be positive)", c.Capture.StabilityFrames)
	}
	if c.Capture.HistorySize < 3 {
		return fmt.Errorf("invalid capture history size: %d (must be at least 3)", c.Capture.HistorySize)
	}
	if c.Capture.CaptureDelay < 0 || c.Capture.MinGreenTime < 0 {
		return fmt.Errorf("capture delays must not be negative")
	}

	if v := c.Remote.EngineVersion; v < 1 || v > 3 {
		return fmt.Errorf("invalid remote engine version: %d (must be 1, 2 or 3)", v)
	}
	if q := c.Remote.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("invalid remote jpeg quality: %d (must be between 1 and 100)", q)
	}
	if c.Remote.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid remote requests per minute: %d (must not be negative)", c.Remote.RequestsPerMinute)
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache directory must be set when the cache is enabled")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("invalid cache max entries: %d (must not be negative)", c.Cache.MaxEntries)
	}

	if v := c.Verify.MinCredentialConfidence; v < 0 || v > 100 {
		return fmt.Errorf("invalid min credential confidence: %.1f (must be between 0 and 100)", v)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("invalid server timeout: %s (must be positive)", c.Server.Timeout)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid server requests per minute: %d (must be non-negative)", c.Server.RequestsPerMinute)
	}
	return nil
}

// ToCaptureConfig converts to the capture controller settings.
func (c *Config) ToCaptureConfig() capture.Config {
	return capture.Config{
		CheckInterval:   c.Capture.CheckInterval,
		StabilityFrames: c.Capture.StabilityFrames,
		HistorySize:     c.Capture.HistorySize,
		ROIWidth:        c.Capture.ROIWidth,
		ROIHeight:       c.Capture.ROIHeight,
		MinGreenTime:    c.Capture.MinGreenTime,
		CaptureDelay:    c.Capture.CaptureDelay,
		SessionTimeout:  c.Capture.SessionTimeout,
	}
}

// ToRemoteConfig converts to the OCR.space client settings.
func (c *Config) ToRemoteConfig() recognizer.RemoteConfig {
	return recognizer.RemoteConfig{
		Endpoint:          c.Remote.Endpoint,
		APIKey:            c.Remote.APIKey,
		Language:          c.Remote.Language,
		EngineVersion:     c.Remote.EngineVersion,
		Timeout:           c.Remote.Timeout,
		MaxSide:           c.Remote.MaxSide,
		JPEGQuality:       c.Remote.JPEGQuality,
		RequestsPerMinute: c.Remote.RequestsPerMinute,
	}
}

// ToLocalConfig converts to the local attempt loop limits.
func (c *Config) ToLocalConfig() recognizer.LocalConfig {
	return recognizer.LocalConfig{
		AttemptTimeout: c.Local.AttemptTimeout,
		Budget:         c.Local.Budget,
		GuestBudget:    c.Local.GuestBudget,
	}
}

// ToEngineConfig converts to the verification engine settings.
func (c *Config) ToEngineConfig() verify.EngineConfig {
	return verify.EngineConfig{
		MinCredentialConfidence: c.Verify.MinCredentialConfidence,
		CheckParsedExpiration:   c.Verify.CheckParsedExpiration,
	}
}

func validateFraction(value float64, name string) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("invalid %s: %.2f (must be in (0, 1])", name, value)
	}
	return nil
}
