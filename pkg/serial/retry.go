package serial

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ConnectionState represents the state of a serial connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the string representation of ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RetryConfig defines configuration for connection retry logic
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval"`
	BackoffFactor float64       `json:"backoff_factor"`
	MaxInterval   time.Duration `json:"max_interval"`
}

// DefaultRetryConfig returns a configuration that does not retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    0,
		RetryInterval: time.Second,
		BackoffFactor: 2.0,
		MaxInterval:   time.Second * 10,
	}
}

// Validate checks if the retry configuration is valid
func (r RetryConfig) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if r.RetryInterval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}

	if r.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff factor must be >= 1.0")
	}

	if r.MaxInterval < r.RetryInterval {
		return fmt.Errorf("max interval cannot be less than retry interval")
	}

	return nil
}

// OpenWithRetry opens a port through p, retrying recoverable failures with
// exponential backoff until the retries run out or ctx is done
func OpenWithRetry(ctx context.Context, p Provider, name string, settings PortSettings, retry RetryConfig) error {
	if err := retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var lastErr error
	interval := retry.RetryInterval

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("open cancelled: %w", ctx.Err())
			case <-timer.C:
			}

			interval = time.Duration(float64(interval) * retry.BackoffFactor)
			if interval > retry.MaxInterval {
				interval = retry.MaxInterval
			}
		}

		err := p.OpenPort(name, settings)
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRecoverable(err) {
			break
		}
	}

	if retry.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("failed to open serial port after %d attempts: %w", retry.MaxRetries+1, lastErr)
}

// IsRecoverable reports whether retrying the failed operation may succeed
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrPortBusy) || errors.Is(err, ErrPortNotFound)
}
