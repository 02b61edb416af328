// Package config provides the aggregated runtime settings of a terminal
// session and binds them to command line flags
package config

import (
	"fmt"
	"time"

	"uart-terminal/pkg/display"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/tx"
)

// SessionSettings controls the session around the byte pipeline
type SessionSettings struct {
	LocalEcho       bool          `json:"local_echo"`
	PollInterval    time.Duration `json:"poll_interval"`
	ReadSize        int           `json:"read_size"`
	MaxReadFailures int           `json:"max_read_failures"`
	BreakDuration   time.Duration `json:"break_duration"`
	MaxLines        int           `json:"max_lines"`
	HistorySize     int           `json:"history_size"`
	Retries         int           `json:"retries"`
}

// DefaultSessionSettings returns the default session settings
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		LocalEcho:       false,
		PollInterval:    100 * time.Millisecond,
		ReadSize:        1024,
		MaxReadFailures: 3,
		BreakDuration:   250 * time.Millisecond,
		MaxLines:        display.DefaultMaxLines,
		HistorySize:     history.DefaultMaxSize,
		Retries:         0,
	}
}

// Validate checks if the session settings are valid
func (s SessionSettings) Validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", s.PollInterval)
	}

	if s.ReadSize <= 0 {
		return fmt.Errorf("read size must be positive, got: %d", s.ReadSize)
	}

	if s.MaxReadFailures < 1 {
		return fmt.Errorf("max read failures must be at least 1, got: %d", s.MaxReadFailures)
	}

	if s.BreakDuration <= 0 {
		return fmt.Errorf("break duration must be positive, got: %v", s.BreakDuration)
	}

	if s.MaxLines <= 0 {
		return fmt.Errorf("max lines must be positive, got: %d", s.MaxLines)
	}

	if s.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got: %d", s.HistorySize)
	}

	if s.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}

	return nil
}

// RetryConfig returns the open retry policy for these settings
func (s SessionSettings) RetryConfig() serial.RetryConfig {
	r := serial.DefaultRetryConfig()
	r.MaxRetries = s.Retries
	return r
}

// Settings aggregates everything a terminal session is configured with.
// Settings are not persisted; they come from defaults and flags.
type Settings struct {
	Port    string              `json:"port"`
	Serial  serial.PortSettings `json:"serial"`
	TX      tx.Settings         `json:"tx"`
	RX      rx.Settings         `json:"rx"`
	Session SessionSettings     `json:"session"`
}

// Default returns the default settings with no port selected
func Default() Settings {
	return Settings{
		Serial:  serial.DefaultPortSettings(),
		TX:      tx.DefaultSettings(),
		RX:      rx.DefaultSettings(),
		Session: DefaultSessionSettings(),
	}
}

// Validate checks every group of settings. The port name is checked by
// the commands that need one.
func (s Settings) Validate() error {
	if err := s.Serial.Validate(); err != nil {
		return fmt.Errorf("invalid serial settings: %w", err)
	}

	if err := s.TX.Validate(); err != nil {
		return fmt.Errorf("invalid tx settings: %w", err)
	}

	if err := s.RX.Validate(); err != nil {
		return fmt.Errorf("invalid rx settings: %w", err)
	}

	if err := s.Session.Validate(); err != nil {
		return fmt.Errorf("invalid session settings: %w", err)
	}

	return nil
}
