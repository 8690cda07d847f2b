// Package config loads deskops configuration from environment variables
// (DESKOPS_ prefix) merged over an optional YAML file. Environment wins;
// struct tag defaults apply when neither source sets a value.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "DESKOPS"

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
}

// EngineConfig bounds the bulk engine.
type EngineConfig struct {
	BatchSize          int           `yaml:"batch_size" envconfig:"BATCH_SIZE" default:"10"`
	InterBatchDelay    time.Duration `yaml:"inter_batch_delay" envconfig:"INTER_BATCH_DELAY" default:"100ms"`
	HistoryLimit       int           `yaml:"history_limit" envconfig:"HISTORY_LIMIT" default:"50"`
	UndoDepth          int           `yaml:"undo_depth" envconfig:"UNDO_DEPTH" default:"50"`
	PersistedUndoLimit int           `yaml:"persisted_undo_limit" envconfig:"PERSISTED_UNDO_LIMIT" default:"20"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT" default:"10s"`
}

// RateLimitConfig contains API rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	StoreFile string `yaml:"store_file" envconfig:"STORE_FILE" default:"data/state.json"`
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"data/exports"`
}

// DefaultConfigFile is consulted when no explicit path is given.
const DefaultConfigFile = "config.yaml"

// Load builds the configuration from environment variables merged over the
// optional YAML file at configFile (empty means DefaultConfigFile).
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultConfigFile
	}

	var fileCfg Config
	haveFile := false
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
		haveFile = true
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var envCfg Config
	if err := envconfig.Process(EnvPrefix, &envCfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg := envCfg
	if haveFile {
		cfg = merge(fileCfg, envCfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// merge overlays explicitly set file values under env values. Env wins for
// any variable that was actually set; defaults fill the rest.
func merge(fileCfg, envCfg Config) Config {
	cfg := envCfg

	overlayInt := func(env string, target *int, fileValue int) {
		if fileValue != 0 && !isSet(env) {
			*target = fileValue
		}
	}
	overlayDuration := func(env string, target *time.Duration, fileValue time.Duration) {
		if fileValue != 0 && !isSet(env) {
			*target = fileValue
		}
	}
	overlayString := func(env string, target *string, fileValue string) {
		if fileValue != "" && !isSet(env) {
			*target = fileValue
		}
	}
	overlayFloat := func(env string, target *float64, fileValue float64) {
		if fileValue != 0 && !isSet(env) {
			*target = fileValue
		}
	}

	overlayInt("SERVER_PORT", &cfg.Server.Port, fileCfg.Server.Port)
	overlayDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout, fileCfg.Server.ReadTimeout)
	overlayDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout, fileCfg.Server.WriteTimeout)
	overlayDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout, fileCfg.Server.IdleTimeout)
	overlayDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout, fileCfg.Server.ShutdownTimeout)

	overlayString("LOGGING_LEVEL", &cfg.Logging.Level, fileCfg.Logging.Level)
	overlayString("LOGGING_FORMAT", &cfg.Logging.Format, fileCfg.Logging.Format)
	overlayString("LOGGING_OUTPUT", &cfg.Logging.Output, fileCfg.Logging.Output)

	overlayInt("ENGINE_BATCH_SIZE", &cfg.Engine.BatchSize, fileCfg.Engine.BatchSize)
	overlayDuration("ENGINE_INTER_BATCH_DELAY", &cfg.Engine.InterBatchDelay, fileCfg.Engine.InterBatchDelay)
	overlayInt("ENGINE_HISTORY_LIMIT", &cfg.Engine.HistoryLimit, fileCfg.Engine.HistoryLimit)
	overlayInt("ENGINE_UNDO_DEPTH", &cfg.Engine.UndoDepth, fileCfg.Engine.UndoDepth)
	overlayInt("ENGINE_PERSISTED_UNDO_LIMIT", &cfg.Engine.PersistedUndoLimit, fileCfg.Engine.PersistedUndoLimit)

	overlayInt("WEBSOCKET_READ_BUFFER_SIZE", &cfg.WebSocket.ReadBufferSize, fileCfg.WebSocket.ReadBufferSize)
	overlayInt("WEBSOCKET_WRITE_BUFFER_SIZE", &cfg.WebSocket.WriteBufferSize, fileCfg.WebSocket.WriteBufferSize)
	overlayDuration("WEBSOCKET_PING_PERIOD", &cfg.WebSocket.PingPeriod, fileCfg.WebSocket.PingPeriod)
	overlayDuration("WEBSOCKET_PONG_WAIT", &cfg.WebSocket.PongWait, fileCfg.WebSocket.PongWait)
	overlayDuration("WEBSOCKET_WRITE_WAIT", &cfg.WebSocket.WriteWait, fileCfg.WebSocket.WriteWait)

	overlayFloat("RATE_LIMIT_RPS", &cfg.RateLimit.RPS, fileCfg.RateLimit.RPS)
	overlayInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst, fileCfg.RateLimit.Burst)

	overlayString("PATHS_DATA_DIR", &cfg.Paths.DataDir, fileCfg.Paths.DataDir)
	overlayString("PATHS_STORE_FILE", &cfg.Paths.StoreFile, fileCfg.Paths.StoreFile)
	overlayString("PATHS_EXPORT_DIR", &cfg.Paths.ExportDir, fileCfg.Paths.ExportDir)

	return cfg
}

// isSet reports whether the prefixed environment variable was provided.
func isSet(name string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + name)
	return ok
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Engine.BatchSize < 1 {
		return fmt.Errorf("engine batch size must be positive, got %d", c.Engine.BatchSize)
	}
	if c.Engine.InterBatchDelay < 0 {
		return fmt.Errorf("inter-batch delay cannot be negative")
	}
	if c.Engine.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be positive, got %d", c.Engine.HistoryLimit)
	}
	if c.Engine.UndoDepth < 1 {
		return fmt.Errorf("undo depth must be positive, got %d", c.Engine.UndoDepth)
	}
	if c.Engine.PersistedUndoLimit > c.Engine.UndoDepth {
		return fmt.Errorf("persisted undo limit %d exceeds undo depth %d",
			c.Engine.PersistedUndoLimit, c.Engine.UndoDepth)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}
	return nil
}
