// Package recorder persists a live cube session to the database.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/storage"
	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Errors
var (
	ErrRecording    = errors.New("recorder: session already recording")
	ErrNotRecording = errors.New("recorder: no session recording")
)

// SessionState represents the current state of a recording session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StateEnded
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session records one cube connection: every move, each distinct state and
// the number of solves.
//
// Handle* methods are meant to be called from the cube callbacks. They are
// no-ops unless recording.
type Session struct {
	stateFile *StateFile
	log       *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	state     SessionState
	sessionID string
	startTime time.Time
	moveIndex int
	last      types.CubeState
	hasLast   bool

	sessionRepo  *storage.SessionRepository
	moveRepo     *storage.MoveRepository
	snapshotRepo *storage.SnapshotRepository
}

// NewSession creates a recorder backed by db. stateFile may be nil.
func NewSession(db *storage.DB, stateFile *StateFile, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		stateFile:    stateFile,
		log:          log,
		now:          time.Now,
		state:        StateIdle,
		sessionRepo:  storage.NewSessionRepository(db),
		moveRepo:     storage.NewMoveRepository(db),
		snapshotRepo: storage.NewSnapshotRepository(db),
	}
}

// State returns the current recording state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID returns the ID of the current or last session.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// MoveCount returns the number of moves recorded so far.
func (s *Session) MoveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moveIndex
}

// Start opens a new session for the given device.
func (s *Session) Start(deviceName, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return "", ErrRecording
	}

	start := s.now()
	id, err := s.sessionRepo.Create(deviceName, address, start)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.sessionID = id
	s.startTime = start
	s.moveIndex = 0
	s.hasLast = false
	s.state = StateRecording

	if s.stateFile != nil {
		if err := s.stateFile.SetActiveSession(id); err != nil {
			s.log.Warn("failed to save active session", zap.Error(err))
		}
		if err := s.stateFile.SetLastDevice(address, deviceName); err != nil {
			s.log.Warn("failed to save last device", zap.Error(err))
		}
	}

	s.log.Info("recording started", zap.String("session_id", id))
	return id, nil
}

// End closes the current session.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return ErrNotRecording
	}

	if err := s.sessionRepo.End(s.sessionID, s.now()); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.state = StateEnded

	if s.stateFile != nil {
		if err := s.stateFile.ClearActiveSession(); err != nil {
			s.log.Warn("failed to clear active session", zap.Error(err))
		}
	}

	s.log.Info("recording ended",
		zap.String("session_id", s.sessionID),
		zap.Int("moves", s.moveIndex),
	)
	return nil
}

// HandleState stores a snapshot when the facelets differ from the last one.
func (s *Session) HandleState(state types.CubeState, battery int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}
	if s.hasLast && s.last == state {
		return nil
	}

	if _, err := s.snapshotRepo.Create(s.sessionID, s.now(), state, battery); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	s.last = state
	s.hasLast = true
	return nil
}

// HandleMove stores the next move.
func (s *Session) HandleMove(move types.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}

	if move.Time.IsZero() {
		move.Time = s.now()
	}
	if _, err := s.moveRepo.Create(s.sessionID, s.moveIndex, move); err != nil {
		return fmt.Errorf("failed to store move: %w", err)
	}
	s.moveIndex++
	return nil
}

// HandleSolved counts a solve.
func (s *Session) HandleSolved() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}

	if err := s.sessionRepo.IncrementSolves(s.sessionID); err != nil {
		return fmt.Errorf("failed to record solve: %w", err)
	}
	s.log.Info("solve recorded", zap.Int("moves", s.moveIndex))
	return nil
}

// Resume continues an interrupted session that was never ended.
func (s *Session) Resume(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return ErrRecording
	}

	sess, err := s.sessionRepo.Get(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if sess.EndedAt != nil {
		return fmt.Errorf("session %s already ended", sessionID)
	}

	s.sessionID = sessionID
	s.startTime = sess.StartedAt
	s.moveIndex = sess.MoveCount
	s.hasLast = false
	s.state = StateRecording

	if last, err := s.snapshotRepo.Latest(sessionID); err == nil && last != nil {
		s.last = last.State
		s.hasLast = true
	}

	s.log.Info("recording resumed", zap.String("session_id", sessionID), zap.Int("moves", s.moveIndex))
	return nil
}
