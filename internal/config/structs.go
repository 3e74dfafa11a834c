//nolint:lll
package config

import "time"

// Config is the complete motorpass configuration. It is loaded from
// motorpass.yaml, MOTORPASS_* environment variables and command-line flags,
// in increasing order of precedence.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Capture CaptureConfig `mapstructure:"capture" yaml:"capture" json:"capture"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote" json:"remote"`
	Local   LocalConfig   `mapstructure:"local" yaml:"local" json:"local"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe" json:"probe"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache" json:"cache"`
	Verify  VerifyConfig  `mapstructure:"verify" yaml:"verify" json:"verify"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// CaptureConfig tunes the live capture loop.
type CaptureConfig struct {
	CheckInterval   int           `mapstructure:"check_interval" yaml:"check_interval" json:"check_interval"`
	StabilityFrames int           `mapstructure:"stability_frames" yaml:"stability_frames" json:"stability_frames"`
	HistorySize     int           `mapstructure:"history_size" yaml:"history_size" json:"history_size"`
	ROIWidth        float64       `mapstructure:"roi_width" yaml:"roi_width" json:"roi_width"`
	ROIHeight       float64       `mapstructure:"roi_height" yaml:"roi_height" json:"roi_height"`
	MinGreenTime    time.Duration `mapstructure:"min_green_time" yaml:"min_green_time" json:"min_green_time"`
	CaptureDelay    time.Duration `mapstructure:"capture_delay" yaml:"capture_delay" json:"capture_delay"`
	SessionTimeout  time.Duration `mapstructure:"session_timeout" yaml:"session_timeout" json:"session_timeout"`
	ScanTimeout     time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout" json:"scan_timeout"`
}

// RemoteConfig configures the OCR.space client. An empty APIKey disables it.
type RemoteConfig struct {
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Language          string        `mapstructure:"language" yaml:"language" json:"language"`
	EngineVersion     int           `mapstructure:"engine_version" yaml:"engine_version" json:"engine_version"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxSide           int           `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
	JPEGQuality       int           `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LocalConfig configures the on-device OCR engine.
type LocalConfig struct {
	Language       string        `mapstructure:"language" yaml:"language" json:"language"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout" json:"attempt_timeout"`
	Budget         time.Duration `mapstructure:"budget" yaml:"budget" json:"budget"`
	GuestBudget    time.Duration `mapstructure:"guest_budget" yaml:"guest_budget" json:"guest_budget"`
}

// ProbeConfig configures the connectivity check in front of the remote
// recognizer.
type ProbeConfig struct {
	Address string        `mapstructure:"address" yaml:"address" json:"address"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// CacheConfig configures the recognition result cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir" json:"dir"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
}

// VerifyConfig tunes the decision stage.
type VerifyConfig struct {
	MinCredentialConfidence float64 `mapstructure:"min_credential_confidence" yaml:"min_credential_confidence" json:"min_credential_confidence"`
	CheckParsedExpiration   bool    `mapstructure:"check_parsed_expiration" yaml:"check_parsed_expiration" json:"check_parsed_expiration"`
}

// OutputConfig contains CLI output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RequestsPerMinute limits verify calls per client; 0 disables the limit.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}
