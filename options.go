package qiyicube

import (
	"time"

	"go.uber.org/zap"
)

// Option configures Cube behavior.
type Option func(*config)

type config struct {
	scanTimeout time.Duration
	verifyCRC   bool
	moveHistory bool
	syncOnStart bool
	logger      *zap.Logger
}

func defaultConfig() *config {
	return &config{
		scanTimeout: 20 * time.Second,
		verifyCRC:   false,
		moveHistory: true,
		syncOnStart: false,
	}
}

// WithScanTimeout sets how long Connect looks for the cube.
func WithScanTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.scanTimeout = d
		}
	}
}

// WithCRCValidation drops inbound frames whose CRC trailer does not match.
// Disabled by default: the cube has not been confirmed to stamp a valid CRC
// on every notification.
func WithCRCValidation(enabled bool) Option {
	return func(c *config) {
		c.verifyCRC = enabled
	}
}

// WithMoveHistory enables or disables move history tracking.
// When enabled (default), all moves are stored and accessible via Moves().
// Disable this for long sessions to reduce memory usage.
func WithMoveHistory(enabled bool) Option {
	return func(c *config) {
		c.moveHistory = enabled
	}
}

// WithSyncOnStart sends a solved-state sync request right after the handshake.
func WithSyncOnStart(enabled bool) Option {
	return func(c *config) {
		c.syncOnStart = enabled
	}
}

// WithLogger sets the logger used by the connection and session.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
