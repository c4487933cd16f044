// Package config loads and validates the YAML configuration files for the
// conferencing server/client and the file-transfer sender/receiver.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration of the conferencing server
// (cmd/confserver).
type ServerConfig struct {
	Server  ServerListen `yaml:"server"`
	Limits  Limits       `yaml:"limits"`
	Users   UsersConfig  `yaml:"users"`
	Logging LoggingInfo  `yaml:"logging"`
	WebUI   WebUIConfig  `yaml:"web_ui"`
	Archive ArchiveConfig `yaml:"archive"`
}

// ServerListen is the TCP listen address of the conferencing server.
type ServerListen struct {
	Listen string `yaml:"listen"`
}

// Limits bounds the in-memory registries.
type Limits struct {
	MaxClients         int           `yaml:"max_clients"`          // default: 64
	MaxSessions        int           `yaml:"max_sessions"`         // default: 32
	MaxJoinedPerClient int           `yaml:"max_joined_per_client"` // default: MaxSessions
	IdleTimeout        time.Duration `yaml:"idle_timeout"`         // default: 60s
	ReaperInterval     time.Duration `yaml:"reaper_interval"`      // default: 5s
}

// UsersConfig points at the static credential table.
type UsersConfig struct {
	File string `yaml:"file"` // path to a YAML users file, see users.go
}

// LoggingInfo configures the slog logger.
type LoggingInfo struct {
	Level  string `yaml:"level"`  // debug|info|warn|error, default: info
	Format string `yaml:"format"` // json|text, default: json
	File   string `yaml:"file"`   // optional extra sink
}

// WebUIConfig configures the read-only observability HTTP endpoint.
type WebUIConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Listen       string   `yaml:"listen"`        // default: "127.0.0.1:9849"
	AllowOrigins []string `yaml:"allow_origins"` // IP or CIDR, deny-by-default

	EventsFile     string `yaml:"events_file"`      // default: "events.jsonl"
	EventsMaxLines int    `yaml:"events_max_lines"` // default: 10000

	// Parsed is filled in by validate(); it does not come from YAML.
	ParsedCIDRs []*net.IPNet `yaml:"-"`
}

// ArchiveConfig configures periodic export of the live session/client
// listing (the QUERY text) to durable storage (local file and/or S3),
// mirroring a backup job.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Schedule        string `yaml:"schedule"`         // cron expression, default: "@every 1h"
	HistoryFile     string `yaml:"history_file"`     // default: "session-history.jsonl"
	CompressionMode string `yaml:"compression_mode"` // gzip|zst, default: gzip

	S3 S3ArchiveConfig `yaml:"s3"`
}

// S3ArchiveConfig configures the optional S3 upload destination. Left with
// an empty Bucket, the archiver only appends compressed entries to the
// local history file; it never rotates that file.
type S3ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"` // default: "confrelay/sessions/"
	Region string `yaml:"region"`
}

// CompressionExtension returns the file extension matching CompressionMode.
func (a ArchiveConfig) CompressionExtension() string {
	if a.CompressionMode == "zst" {
		return ".jsonl.zst"
	}
	return ".jsonl.gz"
}

// LoadServerConfig reads and validates a server YAML config file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}
	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	if c.Limits.MaxClients <= 0 {
		c.Limits.MaxClients = 64
	}
	if c.Limits.MaxSessions <= 0 {
		c.Limits.MaxSessions = 32
	}
	if c.Limits.MaxJoinedPerClient <= 0 {
		c.Limits.MaxJoinedPerClient = c.Limits.MaxSessions
	}
	if c.Limits.IdleTimeout <= 0 {
		c.Limits.IdleTimeout = 60 * time.Second
	}
	if c.Limits.ReaperInterval <= 0 {
		c.Limits.ReaperInterval = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.WebUI.Enabled {
		if c.WebUI.Listen == "" {
			c.WebUI.Listen = "127.0.0.1:9849"
		}
		if c.WebUI.EventsFile == "" {
			c.WebUI.EventsFile = "events.jsonl"
		}
		if c.WebUI.EventsMaxLines <= 0 {
			c.WebUI.EventsMaxLines = 10000
		}
		if len(c.WebUI.AllowOrigins) == 0 {
			return fmt.Errorf("web_ui.allow_origins is required when web_ui is enabled (deny-by-default)")
		}
		for _, origin := range c.WebUI.AllowOrigins {
			cidr, err := parseOriginCIDR(origin)
			if err != nil {
				return fmt.Errorf("web_ui.allow_origins: %w", err)
			}
			c.WebUI.ParsedCIDRs = append(c.WebUI.ParsedCIDRs, cidr)
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Schedule == "" {
			c.Archive.Schedule = "@every 1h"
		}
		if c.Archive.HistoryFile == "" {
			c.Archive.HistoryFile = "session-history.jsonl"
		}
		c.Archive.CompressionMode = strings.ToLower(strings.TrimSpace(c.Archive.CompressionMode))
		if c.Archive.CompressionMode == "" {
			c.Archive.CompressionMode = "gzip"
		}
		if c.Archive.CompressionMode != "gzip" && c.Archive.CompressionMode != "zst" {
			return fmt.Errorf("archive.compression_mode must be gzip or zst, got %q", c.Archive.CompressionMode)
		}
		if c.Archive.S3.Bucket != "" && c.Archive.S3.Prefix == "" {
			c.Archive.S3.Prefix = "confrelay/sessions/"
		}
	}

	return nil
}

func parseOriginCIDR(origin string) (*net.IPNet, error) {
	if _, cidr, err := net.ParseCIDR(origin); err == nil {
		return cidr, nil
	}
	ip := net.ParseIP(strings.TrimSpace(origin))
	if ip == nil {
		return nil, fmt.Errorf("%q is not a valid IP or CIDR", origin)
	}
	suffix := "/32"
	if ip.To4() == nil {
		suffix = "/128"
	}
	_, cidr, err := net.ParseCIDR(ip.String() + suffix)
	return cidr, err
}
