// Package config loads the console configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/crclink/pkg/console"
	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/simulation"
	tlspkg "github.com/dd0wney/crclink/pkg/tls"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/dd0wney/crclink/pkg/tracing"
	"github.com/dd0wney/crclink/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvServerHost  = "CRCLINK_SERVER_HOST"
	EnvServerPort  = "CRCLINK_SERVER_PORT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvDatabaseURL = "CRCLINK_DATABASE_URL"
	EnvAuditDir    = "CRCLINK_AUDIT_DIR"
)

// Config is the full console configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Canvas     CanvasConfig     `yaml:"canvas"`
	Simulation SimulationConfig `yaml:"simulation"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	History    HistoryConfig    `yaml:"history"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Audit      AuditConfig      `yaml:"audit"`
}

// ServerConfig locates the simulation collaborator
type ServerConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	BasePath   string        `yaml:"base_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MasterPath string        `yaml:"master_path"`
	TLS        tlspkg.Config `yaml:"tls"`
}

// BaseURL is the root of the collaborator's simulation endpoints
func (s ServerConfig) BaseURL() string {
	scheme := "http://"
	if s.TLS.Enabled {
		scheme = "https://"
	}
	return scheme + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.BasePath
}

// ConsoleURL is the master websocket endpoint
func (s ServerConfig) ConsoleURL() string {
	if s.TLS.Enabled {
		return console.SecureURL(s.Host, s.Port, s.MasterPath)
	}
	return console.URL(s.Host, s.Port, s.MasterPath)
}

type CanvasConfig struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	NodeRadius float64 `yaml:"node_radius"`
}

// Bounds converts the canvas section to topology bounds
func (c CanvasConfig) Bounds() topology.Bounds {
	return topology.Bounds{Width: c.Width, Height: c.Height, Radius: c.NodeRadius}
}

type SimulationConfig struct {
	Delay                float64              `yaml:"delay"`
	PacketLossPercentage float64              `yaml:"packet_loss_percentage"`
	Key                  string               `yaml:"key"`
	ErrorType            simulation.ErrorType `yaml:"error_type"`
	ErrorCount           int                  `yaml:"error_count"`
}

// Defaults converts the simulation section to orchestrator defaults
func (s SimulationConfig) Defaults() simulation.Defaults {
	return simulation.Defaults{
		Delay:                s.Delay,
		PacketLossPercentage: s.PacketLossPercentage,
		Key:                  s.Key,
		ErrorType:            s.ErrorType,
	}
}

type RefreshConfig struct {
	// Interval of zero disables periodic refresh
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	MaxLines int    `yaml:"max_lines"`
}

// ParsedLevel returns the structured log level
func (l LogConfig) ParsedLevel() logging.Level {
	return logging.ParseLevel(l.Level)
}

type MetricsConfig struct {
	// Addr of the metrics and health listener; empty disables it
	Addr string        `yaml:"addr"`
	TLS  tlspkg.Config `yaml:"tls"`
}

type HistoryConfig struct {
	// DatabaseURL selects PostgreSQL; empty keeps history in memory
	DatabaseURL string `yaml:"database_url"`
	Limit       int    `yaml:"limit"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	File        string  `yaml:"file"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Tracing converts the tracing section for tracing.Init
func (t TracingConfig) Tracing() tracing.Config {
	return tracing.Config{Enabled: t.Enabled, File: t.File, SampleRatio: t.SampleRatio}
}

type AuditConfig struct {
	// Dir for hash-chained audit files; empty keeps the trail in memory only
	Dir          string `yaml:"dir"`
	RotationSize int64  `yaml:"rotation_size"`
	Buffer       int    `yaml:"buffer"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8000,
			BasePath:   "/simulation",
			Timeout:    10 * time.Second,
			MasterPath: "/ws/master/",
			TLS:        tlspkg.DefaultConfig(),
		},
		Canvas: CanvasConfig{
			Width:      topology.DefaultBounds.Width,
			Height:     topology.DefaultBounds.Height,
			NodeRadius: topology.DefaultBounds.Radius,
		},
		Simulation: SimulationConfig{
			Key:        "1101",
			ErrorType:  simulation.ErrorNone,
			ErrorCount: 1,
		},
		Refresh: RefreshConfig{Interval: 5 * time.Second},
		Log: LogConfig{
			Level:    "info",
			MaxLines: 500,
		},
		Metrics: MetricsConfig{TLS: tlspkg.DefaultConfig()},
		History: HistoryConfig{Limit: 50},
		Tracing: TracingConfig{SampleRatio: 1},
		Audit: AuditConfig{
			RotationSize: 10 * 1024 * 1024,
			Buffer:       256,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvServerHost); v != "" {
		c.Server.Host = v
	}
	if v := getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvServerPort, err)
		}
		c.Server.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvDatabaseURL); v != "" {
		c.History.DatabaseURL = v
	}
	if v := getenv(EnvAuditDir); v != "" {
		c.Audit.Dir = v
	}
	return nil
}

var errorTypeNames = func() []string {
	names := make([]string, len(simulation.ErrorTypes))
	for i, t := range simulation.ErrorTypes {
		names[i] = string(t)
	}
	return names
}()

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	v := validation.NewConfigValidator("config")

	v.Required("server.host", c.Server.Host).
		RangeInt("server.port", c.Server.Port, 1, 65535).
		Custom("server.base_path", func() error {
			if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
				return fmt.Errorf("%q must start with /", c.Server.BasePath)
			}
			return nil
		}).
		Custom("server.timeout", func() error {
			if c.Server.Timeout <= 0 {
				return fmt.Errorf("timeout %v must be positive", c.Server.Timeout)
			}
			return nil
		}).
		Required("server.master_path", c.Server.MasterPath).
		Custom("server.tls", func() error {
			t := c.Server.TLS
			if t.Enabled && (t.CertFile == "") != (t.KeyFile == "") {
				return fmt.Errorf("cert_file and key_file must be set together")
			}
			return nil
		})

	v.PositiveFloat("canvas.width", c.Canvas.Width).
		PositiveFloat("canvas.height", c.Canvas.Height).
		PositiveFloat("canvas.node_radius", c.Canvas.NodeRadius).
		Custom("canvas.node_radius", func() error {
			if 2*c.Canvas.NodeRadius > math.Min(c.Canvas.Width, c.Canvas.Height) {
				return fmt.Errorf("node of radius %g does not fit a %gx%g canvas", c.Canvas.NodeRadius, c.Canvas.Width, c.Canvas.Height)
			}
			return nil
		})

	v.RangeFloat("simulation.delay", c.Simulation.Delay, 0, math.MaxFloat64).
		RangeFloat("simulation.packet_loss_percentage", c.Simulation.PacketLossPercentage, 0, 100).
		OneOf("simulation.error_type", string(c.Simulation.ErrorType), errorTypeNames).
		RangeInt("simulation.error_count", c.Simulation.ErrorCount, 0, math.MaxInt32)

	v.NonNegativeDuration("refresh.interval", c.Refresh.Interval)

	v.OneOf("log.level", c.Log.Level, []string{"debug", "info", "warn", "error"}).
		Positive("log.max_lines", c.Log.MaxLines)

	v.Custom("metrics.tls", func() error {
		t := c.Metrics.TLS
		if !t.Enabled {
			return nil
		}
		if (t.CertFile == "") != (t.KeyFile == "") {
			return fmt.Errorf("cert_file and key_file must be set together")
		}
		if !t.HasKeyPair() && !t.AutoGenerate {
			return tlspkg.ErrNoCertificate
		}
		return nil
	})

	v.Positive("history.limit", c.History.Limit)

	v.Positive("audit.buffer", c.Audit.Buffer).
		Custom("audit.rotation_size", func() error {
			if c.Audit.RotationSize < 0 {
				return fmt.Errorf("rotation size %d must not be negative", c.Audit.RotationSize)
			}
			return nil
		})

	v.RangeFloat("tracing.sample_ratio", c.Tracing.SampleRatio, 0, 1)

	return v.Validate()
}
