package protocol

import (
	"fmt"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Inbound opcodes.
const (
	OpHello       byte = 0x02 // Cube hello, answered with an ack
	OpStateChange byte = 0x03 // Move notification, ack on request
	OpSyncEcho    byte = 0x04 // Reply to a sync-state request
)

// Message is a decoded inbound frame.
type Message struct {
	Type     byte
	State    types.CubeState
	Move     int  // Raw move code, -1 when the message carries none
	Battery  int  // 0-100, -1 when the message carries none
	NeedsAck bool // Device expects an acknowledgment
}

// minLength is the smallest decrypted buffer each opcode can be read from.
var minLength = map[byte]int{
	OpHello:       OffsetBattery + 1,
	OpStateChange: OffsetBattery + 1,
	OpSyncEcho:    FaceletsEnd,
}

// Decode interprets a frame by opcode.
func Decode(f *Frame) (*Message, error) {
	need, ok := minLength[f.Opcode]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, f.Opcode)
	}
	if len(f.Data) < need {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortFrame, MessageTypeName(f.Opcode), need, len(f.Data))
	}

	state, err := types.UnpackFacelets(f.Data[FaceletsStart:FaceletsEnd])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortFrame, err)
	}

	msg := &Message{
		Type:    f.Opcode,
		State:   state,
		Move:    -1,
		Battery: -1,
	}

	switch f.Opcode {
	case OpHello:
		msg.Battery = int(f.Data[OffsetBattery])
		msg.NeedsAck = true
	case OpStateChange:
		msg.Move = int(f.Data[OffsetMove])
		msg.Battery = int(f.Data[OffsetBattery])
		msg.NeedsAck = len(f.Data) > OffsetNeedsAck && f.Data[OffsetNeedsAck] == 1
	}

	return msg, nil
}

// MessageTypeName returns a human-readable name for the opcode.
func MessageTypeName(op byte) string {
	switch op {
	case OpHello:
		return "hello"
	case OpStateChange:
		return "state_change"
	case OpSyncEcho:
		return "sync_echo"
	default:
		return fmt.Sprintf("unknown_0x%02X", op)
	}
}
