package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "motorpass"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MOTORPASS"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, which is where the
// cobra flags are bound.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the config file from the search paths (a missing file is fine),
// applies environment overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("capture.check_interval", d.Capture.CheckInterval)
	l.v.SetDefault("capture.stability_frames", d.Capture.StabilityFrames)
	l.v.SetDefault("capture.history_size", d.Capture.HistorySize)
	l.v.SetDefault("capture.roi_width", d.Capture.ROIWidth)
	l.v.SetDefault("capture.roi_height", d.Capture.ROIHeight)
	l.v.SetDefault("capture.min_green_time", d.Capture.MinGreenTime)
	l.v.SetDefault("capture.capture_delay", d.Capture.CaptureDelay)
	l.v.SetDefault("capture.session_timeout", d.Capture.SessionTimeout)
	l.v.SetDefault("capture.scan_timeout", d.Capture.ScanTimeout)

	l.v.SetDefault("remote.endpoint", d.Remote.Endpoint)
	l.v.SetDefault("remote.api_key", d.Remote.APIKey)
	l.v.SetDefault("remote.language", d.Remote.Language)
	l.v.SetDefault("remote.engine_version", d.Remote.EngineVersion)
	l.v.SetDefault("remote.timeout", d.Remote.Timeout)
	l.v.SetDefault("remote.max_side", d.Remote.MaxSide)
	l.v.SetDefault("remote.jpeg_quality", d.Remote.JPEGQuality)
	l.v.SetDefault("remote.requests_per_minute", d.Remote.RequestsPerMinute)

	l.v.SetDefault("local.language", d.Local.Language)
	l.v.SetDefault("local.attempt_timeout", d.Local.AttemptTimeout)
	l.v.SetDefault("local.budget", d.Local.Budget)
	l.v.SetDefault("local.guest_budget", d.Local.GuestBudget)

	l.v.SetDefault("probe.address", d.Probe.Address)
	l.v.SetDefault("probe.timeout", d.Probe.Timeout)
	l.v.SetDefault("probe.ttl", d.Probe.TTL)

	l.v.SetDefault("cache.enabled", d.Cache.Enabled)
	l.v.SetDefault("cache.dir", d.Cache.Dir)
	l.v.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	l.v.SetDefault("verify.min_credential_confidence", d.Verify.MinCredentialConfidence)
	l.v.SetDefault("verify.check_parsed_expiration", d.Verify.CheckParsedExpiration)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout", d.Server.Timeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
}

// GenerateDefaultConfigFile writes the defaults to filename (motorpass.yaml
// when empty).
func GenerateDefaultConfigFile(filename string) error {
	l := NewLoaderWithViper(viper.New())
	l.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return l.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/motorpass")
}
