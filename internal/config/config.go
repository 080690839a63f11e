// Package config provides configuration management for the VrewCraft backend.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort         = 3001
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".vrewcraft"
	DefaultPublicPrefix = "/videos"

	// Environment variable names
	EnvPort         = "VREW_PORT"
	EnvLogLevel     = "VREW_LOG_LEVEL"
	EnvDataDir      = "VREW_DATA_DIR"
	EnvFFmpegBin    = "VREW_FFMPEG_BIN"
	EnvFFprobeBin   = "VREW_FFPROBE_BIN"
	EnvPublicPrefix = "VREW_PUBLIC_PREFIX"

	// Database filename
	DBFilename = "vrewcraft.db"

	// Upload limit
	DefaultMaxUploadBytes = 512 << 20 // 512MB

	// Subprocess timeouts
	DefaultProbeTimeoutSeconds   = 30
	DefaultProcessTimeoutSeconds = 600

	// WebSocket heartbeat and the observer-side reconnect policy.
	// Observers reconnect after a fixed delay, without backoff and
	// without an attempt limit.
	DefaultPingIntervalSeconds   = 30
	DefaultReconnectDelaySeconds = 3
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	VideosDir() string
	PublicPrefix() string
	FFmpegBin() string
	FFprobeBin() string
	MaxUploadBytes() int64
	ProbeTimeout() time.Duration
	ProcessTimeout() time.Duration
	PingInterval() time.Duration
	ReconnectDelay() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	publicPrefix string
	ffmpegBin    string
	ffprobeBin   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		publicPrefix: DefaultPublicPrefix,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if pp := os.Getenv(EnvPublicPrefix); pp != "" {
		cfg.publicPrefix = pp
	}

	cfg.ffmpegBin = os.Getenv(EnvFFmpegBin)
	cfg.ffprobeBin = os.Getenv(EnvFFprobeBin)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// VideosDir returns the content store root, where uploaded and derived
// media files are written.
func (c *EnvConfig) VideosDir() string {
	return filepath.Join(c.dataDir, "videos")
}

// PublicPrefix returns the URL prefix under which the content store root
// is mounted for direct artifact retrieval.
func (c *EnvConfig) PublicPrefix() string {
	return c.publicPrefix
}

// FFmpegBin returns the configured ffmpeg binary path, or empty for
// PATH lookup.
func (c *EnvConfig) FFmpegBin() string {
	return c.ffmpegBin
}

// FFprobeBin returns the configured ffprobe binary path, or empty for
// PATH lookup.
func (c *EnvConfig) FFprobeBin() string {
	return c.ffprobeBin
}

// MaxUploadBytes returns the maximum accepted upload size in bytes
func (c *EnvConfig) MaxUploadBytes() int64 {
	return DefaultMaxUploadBytes
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeoutSeconds) * time.Second
}

func (c *EnvConfig) ProcessTimeout() time.Duration {
	return time.Duration(DefaultProcessTimeoutSeconds) * time.Second
}

func (c *EnvConfig) PingInterval() time.Duration {
	return time.Duration(DefaultPingIntervalSeconds) * time.Second
}

func (c *EnvConfig) ReconnectDelay() time.Duration {
	return time.Duration(DefaultReconnectDelaySeconds) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
