package config

import "time"

// SenderConfig configures the file-transfer sender (cmd/ftsend). The
// receiver address and the file come from the -addr and -file flags; the
// file name is not read from standard input. Everything here is a
// transfer policy knob.
type SenderConfig struct {
	MaxRetries     int           `yaml:"max_retries"`      // default: 5
	InitialTimeout time.Duration `yaml:"initial_timeout"`  // default: 1s
	MaxTimeout     time.Duration `yaml:"max_timeout"`      // default: 8s, doubled each retry up to this cap
	RateLimitBps   int64         `yaml:"rate_limit_bps"`   // 0 = unlimited
	Logging        LoggingInfo   `yaml:"logging"`
}

// DefaultSenderConfig returns the recommended retry policy: five
// attempts, 1s initial timeout doubling up to 8s.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		MaxRetries:     5,
		InitialTimeout: 1 * time.Second,
		MaxTimeout:     8 * time.Second,
		Logging:        LoggingInfo{Level: "info", Format: "text"},
	}
}

// ReceiverConfig configures the file-transfer receiver (cmd/ftrecv).
type ReceiverConfig struct {
	OutputDir    string      `yaml:"output_dir"`     // default: "./saved"
	DropRate     float64     `yaml:"drop_rate"`       // p_drop, default: 0.01 (production should set 0)
	RateLimitBps int64       `yaml:"rate_limit_bps"`  // 0 = unlimited
	Logging      LoggingInfo `yaml:"logging"`
}

// DefaultReceiverConfig matches the original's loss-simulation knob
// (p_drop = 0.01); production deployments should override it to 0.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		OutputDir: "./saved",
		DropRate:  0.01,
		Logging:   LoggingInfo{Level: "info", Format: "text"},
	}
}
