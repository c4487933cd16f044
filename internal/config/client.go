package config

import "time"

// ClientConfig carries the handful of knobs the conferencing client needs
// beyond the ID, password and server address, which cmd/confclient takes
// from its -id, -password and -addr flags. cmd/confclient is a line-mode
// driver with no prompt or command parsing.
type ClientConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"` // default: 5s
	Logging     LoggingInfo   `yaml:"logging"`
}

// DefaultClientConfig returns a ClientConfig with every field at its
// documented default, for callers that don't ship a YAML file.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout: 5 * time.Second,
		Logging:     LoggingInfo{Level: "info", Format: "text"},
	}
}
