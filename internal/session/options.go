package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Option configures a Session.
type Option func(*Session)

// WithStateCallback sets the callback fired after every state snapshot.
func WithStateCallback(cb func(state types.CubeState, battery int)) Option {
	return func(s *Session) {
		s.onState = cb
	}
}

// WithMoveCallback sets the callback fired for each recognized move.
func WithMoveCallback(cb func(types.Move)) Option {
	return func(s *Session) {
		s.onMove = cb
	}
}

// WithSolvedCallback sets the callback fired when the cube becomes solved.
// It fires once per transition into the solved state.
func WithSolvedCallback(cb func()) Option {
	return func(s *Session) {
		s.onSolved = cb
	}
}

// WithCRCValidation drops inbound frames whose CRC trailer does not match.
func WithCRCValidation(enabled bool) Option {
	return func(s *Session) {
		s.verifyCRC = enabled
	}
}

// WithMoveHistory enables or disables the in-memory move log.
func WithMoveHistory(enabled bool) Option {
	return func(s *Session) {
		s.history = enabled
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used to stamp moves.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}
