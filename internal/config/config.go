// Package config loads the ttxd configuration: a YAML file applied over
// defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/vt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the root of the configuration file.
type Config struct {
	Decoder   Decoder   `yaml:"decoder"`
	Ingest    Ingest    `yaml:"ingest"`
	Server    Server    `yaml:"server"`
	Metrics   Metrics   `yaml:"metrics"`
	Subtitles Subtitles `yaml:"subtitles"`
	Logging   Logging   `yaml:"logging"`
}

// Decoder selects how pages are decoded and formatted by default.
type Decoder struct {
	Level      string `yaml:"level"`
	Region     int    `yaml:"region"`
	Rows       int    `yaml:"rows"`
	Navigation bool   `yaml:"navigation"`
}

// Ingest configures the stream sources.
type Ingest struct {
	SRTAddr    string        `yaml:"srt_addr"`
	SRTLatency time.Duration `yaml:"srt_latency"`
	Files      []string      `yaml:"files"`
	Format     string        `yaml:"format"`
	// Rate paces file replay in bytes per second; zero is unpaced.
	Rate int  `yaml:"rate"`
	Loop bool `yaml:"loop"`
}

// Server configures the HTTPS and HTTP/3 API.
type Server struct {
	Addr    string `yaml:"addr"`
	H3Addr  string `yaml:"h3_addr"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	CORS    bool   `yaml:"cors"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Subtitles lists pages emitted as captions whether or not they carry the
// subtitle flag.
type Subtitles struct {
	Pages []string `yaml:"pages"`
	Level string   `yaml:"level"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Decoder:   Decoder{Level: "2.5", Rows: format.Rows, Navigation: true},
		Ingest:    Ingest{SRTAddr: ":6000", SRTLatency: 120 * time.Millisecond, Format: "auto"},
		Server:    Server{Addr: ":4444", H3Addr: ":4443", CORS: true},
		Metrics:   Metrics{Enabled: true, Path: "/metrics"},
		Subtitles: Subtitles{Level: "1.5"},
		Logging:   Logging{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies the environment and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the TTX_* variables and DEBUG.
func (c *Config) ApplyEnv(getenv func(string) string) {
	envOr := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	envOr("TTX_HTTP_ADDR", &c.Server.Addr)
	envOr("TTX_H3_ADDR", &c.Server.H3Addr)
	envOr("TTX_SRT_ADDR", &c.Ingest.SRTAddr)
	envOr("TTX_LEVEL", &c.Decoder.Level)
	envOr("TTX_TLS_CERT", &c.Server.TLSCert)
	envOr("TTX_TLS_KEY", &c.Server.TLSKey)
	envOr("TTX_LOG_FORMAT", &c.Logging.Format)
	if getenv("DEBUG") != "" {
		c.Logging.Level = "debug"
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := vt.ParseLevel(c.Decoder.Level); err != nil {
		return fmt.Errorf("%w: decoder.level: %v", ErrInvalid, err)
	}
	if _, err := vt.ParseLevel(c.Subtitles.Level); err != nil {
		return fmt.Errorf("%w: subtitles.level: %v", ErrInvalid, err)
	}
	if c.Decoder.Region < 0 || c.Decoder.Region > 10 {
		return fmt.Errorf("%w: decoder.region %d not in 0-10", ErrInvalid, c.Decoder.Region)
	}
	if c.Decoder.Rows < 1 || c.Decoder.Rows > format.Rows {
		return fmt.Errorf("%w: decoder.rows %d not in 1-%d", ErrInvalid, c.Decoder.Rows, format.Rows)
	}
	switch c.Ingest.Format {
	case "auto", "ts", "m2ts", "t42":
	default:
		return fmt.Errorf("%w: ingest.format %q", ErrInvalid, c.Ingest.Format)
	}
	if c.Ingest.Rate < 0 {
		return fmt.Errorf("%w: ingest.rate is negative", ErrInvalid)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("%w: server.tls_cert and server.tls_key go together", ErrInvalid)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path %q", ErrInvalid, c.Metrics.Path)
	}
	if _, err := c.SubtitlePages(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// FormatOptions returns the default page formatting options.
func (c *Config) FormatOptions() format.Options {
	level, _ := vt.ParseLevel(c.Decoder.Level)
	return format.Options{Level: level, Rows: c.Decoder.Rows, Navigation: c.Decoder.Navigation}
}

// SubtitleOptions returns the options subtitle pages are rendered with.
func (c *Config) SubtitleOptions() format.Options {
	level, _ := vt.ParseLevel(c.Subtitles.Level)
	return format.Options{Level: level}
}

// SubtitlePages parses subtitles.pages.
func (c *Config) SubtitlePages() ([]int, error) {
	out := make([]int, 0, len(c.Subtitles.Pages))
	for _, s := range c.Subtitles.Pages {
		pgno, err := vt.ParsePage(s)
		if err != nil {
			return nil, fmt.Errorf("subtitles.pages: %w", err)
		}
		out = append(out, pgno)
	}
	return out, nil
}

// SlogLevel parses logging.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}
