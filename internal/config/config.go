// Package config loads the server configuration file. Every field is a
// pointer so that omitted keys fall back to the defaults returned by the
// Get* accessors; a partial file is always safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when a key is missing from the file.
const (
	DefaultListen                = ":5000"
	DefaultCapturedImagesDir     = "captured_images"
	DefaultMaxUploadBytes        = 16 * 1024 * 1024
	DefaultHistoryLimit          = 500
	DefaultHealthRefreshInterval = time.Second
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// SerialConfig holds the UART parameters for the light controller link.
// Zero values are normalised by the link itself.
type SerialConfig struct {
	BaudRate int    `json:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// Config is the root server configuration.
type Config struct {
	Listen            *string `json:"listen,omitempty"`
	GRPCListen        *string `json:"grpc_listen,omitempty"` // empty disables gRPC health
	CapturedImagesDir *string `json:"captured_images_dir,omitempty"`
	MaxUploadBytes    *int64  `json:"max_upload_bytes,omitempty"`
	HistoryLimit      *int    `json:"history_limit,omitempty"`

	// Light controller link; empty port disables it.
	LightsSerialPort *string      `json:"lights_serial_port,omitempty"`
	LightsSerial     SerialConfig `json:"lights_serial"`

	HealthRefreshInterval *string `json:"health_refresh_interval,omitempty"` // duration string like "1s"
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The path must carry a .json
// extension and the file must be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty when set")
	}
	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	if c.HistoryLimit != nil && *c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", *c.HistoryLimit)
	}
	if c.HealthRefreshInterval != nil && *c.HealthRefreshInterval != "" {
		d, err := time.ParseDuration(*c.HealthRefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid health_refresh_interval '%s': %w", *c.HealthRefreshInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("health_refresh_interval must be positive, got %s", d)
		}
	}
	if c.LightsSerial.BaudRate < 0 {
		return fmt.Errorf("lights_serial.baud_rate must be non-negative, got %d", c.LightsSerial.BaudRate)
	}
	return nil
}

// GetListen returns the HTTP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetGRPCListen returns the gRPC health listen address; "" means disabled.
func (c *Config) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ""
	}
	return *c.GRPCListen
}

// GetCapturedImagesDir returns the capture directory or the default.
func (c *Config) GetCapturedImagesDir() string {
	if c.CapturedImagesDir == nil || *c.CapturedImagesDir == "" {
		return DefaultCapturedImagesDir
	}
	return *c.CapturedImagesDir
}

// GetMaxUploadBytes returns the upload size cap or the default.
func (c *Config) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return DefaultMaxUploadBytes
	}
	return *c.MaxUploadBytes
}

// GetHistoryLimit returns the history retention or the default.
func (c *Config) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}

// GetLightsSerialPort returns the light controller device path; "" means disabled.
func (c *Config) GetLightsSerialPort() string {
	if c.LightsSerialPort == nil {
		return ""
	}
	return *c.LightsSerialPort
}

// GetHealthRefreshInterval parses health_refresh_interval, falling back
// to the default when unset or unparseable.
func (c *Config) GetHealthRefreshInterval() time.Duration {
	if c.HealthRefreshInterval == nil || *c.HealthRefreshInterval == "" {
		return DefaultHealthRefreshInterval
	}
	d, err := time.ParseDuration(*c.HealthRefreshInterval)
	if err != nil || d <= 0 {
		return DefaultHealthRefreshInterval
	}
	return d
}
