package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// fakeTransport records written frames.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *fakeTransport) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte{}, frame...))
	return nil
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.frames...)
}

// decrypted returns the plaintext of the i-th written frame.
func (f *fakeTransport) decrypted(t *testing.T, i int) []byte {
	t.Helper()
	frames := f.written()
	if i >= len(frames) {
		t.Fatalf("only %d frames written, want index %d", len(frames), i)
	}
	plain, err := protocol.Decrypt(frames[i])
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	return plain
}

var testMAC = [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

// inbound builds an encrypted inbound frame carrying state.
func inbound(op byte, size int, state types.CubeState, edit func([]byte)) []byte {
	data := make([]byte, size)
	data[protocol.OffsetMarker] = protocol.Marker
	data[protocol.OffsetLength] = byte(size - 2)
	data[protocol.OffsetOpcode] = op
	copy(data[3:7], []byte{0x01, 0x02, 0x03, 0x04})
	packed := types.PackFacelets(state)
	copy(data[protocol.FaceletsStart:], packed[:])
	if edit != nil {
		edit(data)
	}
	return protocol.Encrypt(data)
}

func scrambled() types.CubeState {
	s := types.SolvedState
	s[0], s[9] = s[9], s[0]
	return s
}

type recorder struct {
	states  []types.CubeState
	battery []int
	moves   []types.Move
	solved  int
}

func newStarted(t *testing.T, rec *recorder, opts ...Option) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	if rec != nil {
		opts = append(opts,
			WithStateCallback(func(s types.CubeState, b int) {
				rec.states = append(rec.states, s)
				rec.battery = append(rec.battery, b)
			}),
			WithMoveCallback(func(m types.Move) { rec.moves = append(rec.moves, m) }),
			WithSolvedCallback(func() { rec.solved++ }),
		)
	}
	s := New(tr, opts...)
	if err := s.Start(context.Background(), testMAC); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s, tr
}

func TestStartSendsAppHello(t *testing.T) {
	s, tr := newStarted(t, nil)

	if s.State() != StateHandshaking {
		t.Errorf("State() = %v, want handshaking", s.State())
	}
	if len(tr.written()) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(tr.written()))
	}

	plain := tr.decrypted(t, 0)
	if len(plain) != 32 {
		t.Errorf("hello frame length = %d, want 32", len(plain))
	}
	if plain[0] != protocol.Marker || plain[1] != 21 {
		t.Errorf("hello header = % X, want FE 15", plain[:2])
	}
	// Body starts at offset 2, so the address lands at [13,19).
	want := []byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA}
	if !bytes.Equal(plain[13:19], want) {
		t.Errorf("hello address = % X, want % X", plain[13:19], want)
	}
}

func TestStartTwice(t *testing.T) {
	s, _ := newStarted(t, nil)
	if err := s.Start(context.Background(), testMAC); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartWriteFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("link lost")}
	s := New(tr)

	err := s.Start(context.Background(), testMAC)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Start() = %v, want ErrTransport", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestHelloUpdatesStateAndAcks(t *testing.T) {
	rec := &recorder{}
	s, tr := newStarted(t, rec)

	raw := inbound(protocol.OpHello, 48, types.SolvedState, func(d []byte) {
		d[protocol.OffsetBattery] = 77
	})
	if err := s.HandleNotification(context.Background(), raw); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}

	if s.State() != StateStreaming {
		t.Errorf("State() = %v, want streaming", s.State())
	}
	if s.Battery() != 77 {
		t.Errorf("Battery() = %d, want 77", s.Battery())
	}
	if s.Cube() != types.SolvedState {
		t.Error("Cube() should be the solved state")
	}
	if rec.solved != 1 {
		t.Errorf("solved callback fired %d times, want 1", rec.solved)
	}
	if len(rec.states) != 1 || rec.battery[0] != 77 {
		t.Errorf("state callback = %d calls (battery %v), want 1 call with 77", len(rec.states), rec.battery)
	}

	// Hello plus one ack.
	if len(tr.written()) != 2 {
		t.Fatalf("wrote %d frames, want 2", len(tr.written()))
	}
	ack := tr.decrypted(t, 1)
	if ack[0] != protocol.Marker || ack[1] != protocol.AckLength {
		t.Errorf("ack header = % X, want FE 09", ack[:2])
	}
	inPlain, _ := protocol.Decrypt(raw)
	if !bytes.Equal(ack[2:7], inPlain[2:7]) {
		t.Errorf("ack head = % X, want % X", ack[2:7], inPlain[2:7])
	}
	crc := protocol.CRC16(ack[:7])
	if ack[7] != byte(crc) || ack[8] != byte(crc>>8) {
		t.Errorf("ack crc = % X, want %02X %02X", ack[7:9], byte(crc), byte(crc>>8))
	}
}

func TestMoveWithoutAckFlag(t *testing.T) {
	rec := &recorder{}
	s, tr := newStarted(t, rec)

	raw := inbound(protocol.OpStateChange, 96, scrambled(), func(d []byte) {
		d[protocol.OffsetMove] = 2
		d[protocol.OffsetBattery] = 60
		d[protocol.OffsetNeedsAck] = 0
	})
	if err := s.HandleNotification(context.Background(), raw); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}

	moves := s.Moves()
	if len(moves) != 1 || moves[0].Face != types.FaceL {
		t.Fatalf("Moves() = %v, want [L]", moves)
	}
	if moves[0].Code != 2 {
		t.Errorf("move code = %d, want 2", moves[0].Code)
	}
	if len(rec.moves) != 1 || rec.moves[0].Face != types.FaceL {
		t.Errorf("move callback = %v, want [L]", rec.moves)
	}
	if len(tr.written()) != 1 {
		t.Errorf("wrote %d frames, want only the hello", len(tr.written()))
	}
	if rec.solved != 0 {
		t.Error("solved callback should not fire for a scrambled cube")
	}
}

func TestMoveWithAckFlag(t *testing.T) {
	s, tr := newStarted(t, nil)

	raw := inbound(protocol.OpStateChange, 96, scrambled(), func(d []byte) {
		d[protocol.OffsetMove] = 5
		d[protocol.OffsetNeedsAck] = 1
	})
	if err := s.HandleNotification(context.Background(), raw); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}
	if len(tr.written()) != 2 {
		t.Errorf("wrote %d frames, want hello + ack", len(tr.written()))
	}
	if m := s.Moves(); len(m) != 1 || m[0].Face != types.FaceB {
		t.Errorf("Moves() = %v, want [B]", m)
	}
}

func TestUnknownMoveCodeNotLogged(t *testing.T) {
	rec := &recorder{}
	s, _ := newStarted(t, rec)

	raw := inbound(protocol.OpStateChange, 48, scrambled(), func(d []byte) {
		d[protocol.OffsetMove] = 9
	})
	if err := s.HandleNotification(context.Background(), raw); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}
	if len(s.Moves()) != 0 || len(rec.moves) != 0 {
		t.Error("move code 9 should not be recorded")
	}
	if len(rec.states) != 1 {
		t.Error("state should still be updated")
	}
}

func TestSyncEchoNoAckKeepsBattery(t *testing.T) {
	s, tr := newStarted(t, nil)

	hello := inbound(protocol.OpHello, 48, scrambled(), func(d []byte) {
		d[protocol.OffsetBattery] = 40
	})
	echo := inbound(protocol.OpSyncEcho, 48, types.SolvedState, func(d []byte) {
		d[protocol.OffsetBattery] = 99
	})
	for _, raw := range [][]byte{hello, echo} {
		if err := s.HandleNotification(context.Background(), raw); err != nil {
			t.Fatalf("HandleNotification() error = %v", err)
		}
	}

	if s.Battery() != 40 {
		t.Errorf("Battery() = %d, want 40", s.Battery())
	}
	if !s.IsSolved() {
		t.Error("sync echo with solved facelets should mark the cube solved")
	}
	// Hello, ack for the cube hello, nothing for the echo.
	if len(tr.written()) != 2 {
		t.Errorf("wrote %d frames, want 2", len(tr.written()))
	}
}

func TestSolvedIsEdgeTriggered(t *testing.T) {
	rec := &recorder{}
	s, _ := newStarted(t, rec)
	ctx := context.Background()

	sequence := []types.CubeState{
		types.SolvedState, // edge
		types.SolvedState, // still solved
		scrambled(),       // leaves solved
		scrambled(),
		types.SolvedState, // edge
	}
	for _, state := range sequence {
		raw := inbound(protocol.OpStateChange, 48, state, nil)
		if err := s.HandleNotification(ctx, raw); err != nil {
			t.Fatalf("HandleNotification() error = %v", err)
		}
	}

	if rec.solved != 2 {
		t.Errorf("solved callback fired %d times, want 2", rec.solved)
	}
}

func TestMalformedFramesDoNotMutate(t *testing.T) {
	rec := &recorder{}
	s, tr := newStarted(t, rec)
	checked, checkedTr := newStarted(t, rec, WithCRCValidation(true))
	ctx := context.Background()

	badMarker := inbound(protocol.OpHello, 48, types.SolvedState, func(d []byte) {
		d[0] = 0x00
	})
	unknown := inbound(0x07, 48, types.SolvedState, nil)
	short := inbound(protocol.OpHello, 32, types.SolvedState, nil)
	unknownWithCRC, err := protocol.BuildFrame(func() []byte {
		body := make([]byte, 36)
		body[0] = 0x07
		packed := types.PackFacelets(types.SolvedState)
		copy(body[protocol.FaceletsStart-2:], packed[:])
		return body
	}())
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}

	tests := []struct {
		name    string
		session *Session
		raw     []byte
		want    error
	}{
		{"unaligned", s, make([]byte, 17), protocol.ErrFormat},
		{"bad marker", s, badMarker, protocol.ErrProtocol},
		{"unknown opcode", s, unknown, protocol.ErrProtocol},
		{"too short", s, short, protocol.ErrFormat},
		{"unknown opcode with valid crc", checked, unknownWithCRC, protocol.ErrUnknownOpcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.session.HandleNotification(ctx, tt.raw); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	for _, sess := range []*Session{s, checked} {
		if sess.State() != StateHandshaking {
			t.Errorf("State() = %v, want handshaking", sess.State())
		}
		if sess.Battery() != -1 {
			t.Errorf("Battery() = %d, want -1", sess.Battery())
		}
	}
	if len(rec.states) != 0 || rec.solved != 0 {
		t.Error("no callbacks should fire for malformed frames")
	}
	for _, ft := range []*fakeTransport{tr, checkedTr} {
		if len(ft.written()) != 1 {
			t.Errorf("wrote %d frames, want only the hello", len(ft.written()))
		}
	}
}

func TestCRCValidation(t *testing.T) {
	valid, err := protocol.BuildFrame(func() []byte {
		body := make([]byte, 36)
		body[0] = protocol.OpHello
		packed := types.PackFacelets(types.SolvedState)
		copy(body[protocol.FaceletsStart-2:], packed[:])
		body[protocol.OffsetBattery-2] = 88
		return body
	}())
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	corrupt := inbound(protocol.OpHello, 48, types.SolvedState, nil)

	s, _ := newStarted(t, nil, WithCRCValidation(true))
	if err := s.HandleNotification(context.Background(), corrupt); !errors.Is(err, protocol.ErrChecksum) {
		t.Errorf("corrupt frame: err = %v, want ErrChecksum", err)
	}
	if err := s.HandleNotification(context.Background(), valid); err != nil {
		t.Errorf("valid frame: err = %v", err)
	}
	if s.Battery() != 88 {
		t.Errorf("Battery() = %d, want 88", s.Battery())
	}
}

func TestNotificationsBeforeStart(t *testing.T) {
	s := New(&fakeTransport{})
	raw := inbound(protocol.OpHello, 48, types.SolvedState, nil)
	if err := s.HandleNotification(context.Background(), raw); !errors.Is(err, ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	s, _ := newStarted(t, nil)
	s.Close()

	raw := inbound(protocol.OpHello, 48, types.SolvedState, nil)
	if err := s.HandleNotification(context.Background(), raw); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := s.Start(context.Background(), testMAC); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close = %v, want ErrClosed", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestAckWriteFailure(t *testing.T) {
	s, tr := newStarted(t, nil)
	tr.mu.Lock()
	tr.err = errors.New("write failed")
	tr.mu.Unlock()

	raw := inbound(protocol.OpHello, 48, types.SolvedState, func(d []byte) {
		d[protocol.OffsetBattery] = 12
	})
	if err := s.HandleNotification(context.Background(), raw); !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
	if s.Battery() != 12 {
		t.Errorf("Battery() = %d, want 12", s.Battery())
	}
}

func TestRunProcessesInOrder(t *testing.T) {
	rec := &recorder{}
	s, _ := newStarted(t, rec)

	in := make(chan []byte, 8)
	for _, code := range []byte{0, 3, 1, 4} {
		code := code
		in <- inbound(protocol.OpStateChange, 48, scrambled(), func(d []byte) {
			d[protocol.OffsetMove] = code
		})
	}
	in <- make([]byte, 5) // dropped
	close(in)

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := types.FormatMoves(s.Moves()); got != "U R D F" {
		t.Errorf("moves = %q, want %q", got, "U R D F")
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() after Run = %v, want disconnected", s.State())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newStarted(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, make(chan []byte))
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestRunCancelledDuringCallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newStarted(t, nil, WithStateCallback(func(types.CubeState, int) { cancel() }))

	in := make(chan []byte, 1)
	in <- inbound(protocol.OpHello, 48, types.SolvedState, nil)

	err := s.Run(ctx, in)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTransport) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestRunStopsOnTransportError(t *testing.T) {
	s, tr := newStarted(t, nil)
	tr.mu.Lock()
	tr.err = errors.New("gone")
	tr.mu.Unlock()

	in := make(chan []byte, 1)
	in <- inbound(protocol.OpHello, 48, types.SolvedState, nil)

	if err := s.Run(context.Background(), in); !errors.Is(err, ErrTransport) {
		t.Errorf("Run() = %v, want ErrTransport", err)
	}
}

func TestRequestSync(t *testing.T) {
	s := New(&fakeTransport{})
	if err := s.RequestSync(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("RequestSync() before Start = %v, want ErrNotStarted", err)
	}

	s, tr := newStarted(t, nil)
	if err := s.RequestSync(context.Background()); err != nil {
		t.Fatalf("RequestSync() error = %v", err)
	}

	plain := tr.decrypted(t, 1)
	if plain[1] != protocol.SyncStateLen+2 {
		t.Errorf("sync length = %d, want %d", plain[1], protocol.SyncStateLen+2)
	}
	state, err := types.UnpackFacelets(plain[7:34])
	if err != nil {
		t.Fatalf("UnpackFacelets() error = %v", err)
	}
	if !state.IsSolved() {
		t.Error("sync frame should carry the solved state")
	}
}

func TestMoveHistoryDisabled(t *testing.T) {
	rec := &recorder{}
	s, _ := newStarted(t, rec, WithMoveHistory(false))

	raw := inbound(protocol.OpStateChange, 48, scrambled(), func(d []byte) {
		d[protocol.OffsetMove] = 0
	})
	if err := s.HandleNotification(context.Background(), raw); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}
	if len(s.Moves()) != 0 {
		t.Error("history disabled: Moves() should be empty")
	}
	if len(rec.moves) != 1 {
		t.Error("move callback should still fire")
	}
}

func TestStateString(t *testing.T) {
	if StateStreaming.String() != "streaming" {
		t.Errorf("StateStreaming.String() = %q", StateStreaming.String())
	}
	if State(42).String() != "unknown" {
		t.Errorf("State(42).String() = %q", State(42).String())
	}
}
