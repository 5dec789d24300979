// Package session drives the QiYi cube handshake and message stream.
//
// A Session owns the cube state for one connection. Inbound notifications
// are handled strictly one at a time in arrival order, and outbound writes
// are serialized because the cube does not accept concurrent writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Errors
var (
	ErrTransport      = errors.New("session: transport failure")
	ErrClosed         = errors.New("session: closed")
	ErrNotStarted     = errors.New("session: handshake not started")
	ErrAlreadyStarted = errors.New("session: already started")
)

// State is the handshake state of a session.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateStreaming
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Transport writes encrypted frames to the cube without waiting for a response.
type Transport interface {
	Write(ctx context.Context, frame []byte) error
}

// Session is the protocol state machine for one connection.
type Session struct {
	transport Transport
	log       *zap.Logger
	verifyCRC bool
	history   bool
	now       func() time.Time

	// Held for the full duration of a transport write.
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     State
	closed    bool
	cube      types.CubeState
	battery   int
	moves     []types.Move
	wasSolved bool

	onState  func(types.CubeState, int)
	onMove   func(types.Move)
	onSolved func()
}

// New creates a session in the Disconnected state.
func New(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		log:       logging.Named("session"),
		history:   true,
		now:       time.Now,
		battery:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sends the app hello for the cube with hardware address mac and moves
// the session to Handshaking. A failed write returns the session to
// Disconnected.
func (s *Session) Start(ctx context.Context, mac [6]byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateHandshaking
	s.mu.Unlock()

	if err := s.send(ctx, protocol.BuildAppHello(mac)); err != nil {
		s.mu.Lock()
		if s.state == StateHandshaking {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		return fmt.Errorf("app hello: %w", err)
	}

	s.log.Debug("app hello sent", zap.String("mac", fmt.Sprintf("% X", mac)))
	return nil
}

// HandleNotification processes one encrypted notification.
//
// Frames that cannot be decoded return a protocol.ErrFormat or
// protocol.ErrProtocol error and leave the session untouched. A failed
// acknowledgment returns ErrTransport after the state update was applied.
func (s *Session) HandleNotification(ctx context.Context, raw []byte) error {
	if err := s.checkActive(); err != nil {
		return err
	}

	frame, err := protocol.ParseFrame(raw)
	if err != nil {
		return err
	}
	logging.LogRawBytes(s.log, "received decrypted", frame.Data)

	if s.verifyCRC {
		if err := frame.VerifyCRC(); err != nil {
			return err
		}
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	s.apply(msg)

	if msg.NeedsAck {
		body, err := protocol.BuildAckBody(frame.Data)
		if err != nil {
			return err
		}
		if err := s.send(ctx, body); err != nil {
			return fmt.Errorf("ack for %s: %w", protocol.MessageTypeName(msg.Type), err)
		}
		s.log.Debug("ack sent", zap.String("type", protocol.MessageTypeName(msg.Type)))
	}

	return nil
}

// apply updates the session from a decoded message and fires callbacks
// outside the lock.
func (s *Session) apply(msg *protocol.Message) {
	var move types.Move
	var hasMove bool
	if msg.Move >= 0 {
		if face, ok := types.FaceForMoveCode(byte(msg.Move)); ok {
			move = types.Move{Face: face, Code: byte(msg.Move), Time: s.now()}
			hasMove = true
		}
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.cube = msg.State
	if msg.Battery >= 0 {
		s.battery = msg.Battery
	}
	if hasMove && s.history {
		s.moves = append(s.moves, move)
	}
	solved := s.cube.IsSolved()
	solvedEdge := solved && !s.wasSolved
	s.wasSolved = solved

	cube, battery := s.cube, s.battery
	stateCallback := s.onState
	moveCallback := s.onMove
	solvedCallback := s.onSolved
	s.mu.Unlock()

	s.log.Debug("message applied",
		zap.String("type", protocol.MessageTypeName(msg.Type)),
		zap.Int("battery", battery),
		zap.Bool("solved", solved),
	)

	if stateCallback != nil {
		stateCallback(cube, battery)
	}
	if hasMove && moveCallback != nil {
		moveCallback(move)
	}
	if solvedEdge && solvedCallback != nil {
		solvedCallback()
	}
}

// Run handles notifications from inbound in order until ctx is done, inbound
// is closed, or a write fails. The session is closed when Run returns.
// Frames that fail to decode are logged and dropped.
func (s *Session) Run(ctx context.Context, inbound <-chan []byte) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			err := s.HandleNotification(ctx, raw)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, ErrTransport):
				s.log.Error("transport failure", zap.Error(err))
				return err
			case errors.Is(err, ErrClosed):
				return nil
			default:
				s.log.Debug("frame dropped", zap.Error(err), logging.Hex("raw", raw))
			}
		}
	}
}

// RequestSync asks the cube to adopt the solved state.
func (s *Session) RequestSync(ctx context.Context) error {
	return s.SendSyncState(ctx, types.SolvedState)
}

// SendSyncState asks the cube to adopt state. The cube replies with a sync echo.
func (s *Session) SendSyncState(ctx context.Context, state types.CubeState) error {
	s.mu.RLock()
	closed, current := s.closed, s.state
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if current == StateDisconnected {
		return ErrNotStarted
	}
	return s.send(ctx, protocol.BuildSyncState(state))
}

// send frames body and writes it, one write at a time.
func (s *Session) send(ctx context.Context, body []byte) error {
	frame, err := protocol.BuildFrame(body)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.transport.Write(ctx, frame); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (s *Session) checkActive() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == StateDisconnected {
		return ErrNotStarted
	}
	return nil
}

// Close moves the session to Disconnected for good. Later notifications are
// rejected with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.closed = true
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cube returns the last reported cube state.
func (s *Session) Cube() types.CubeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cube
}

// Battery returns the last reported battery level, or -1 if unknown.
func (s *Session) Battery() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battery
}

// IsSolved reports whether the last reported state was solved.
func (s *Session) IsSolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wasSolved
}

// Moves returns a copy of the recognized moves.
func (s *Session) Moves() []types.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]types.Move, len(s.moves))
	copy(result, s.moves)
	return result
}

// ClearMoves empties the move log.
func (s *Session) ClearMoves() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = nil
}
