package qiyicube

import (
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Cube state types, shared with the internal packages.
type (
	CubeState    = types.CubeState
	FaceletColor = types.FaceletColor
	Face         = types.Face
	Move         = types.Move
)

// SolvedState is the only configuration reported as solved.
var SolvedState = types.SolvedState

// Faces in move and facelet notation.
const (
	FaceU = types.FaceU
	FaceR = types.FaceR
	FaceF = types.FaceF
	FaceD = types.FaceD
	FaceL = types.FaceL
	FaceB = types.FaceB
)

// UnpackFacelets expands 27 packed bytes into a CubeState.
func UnpackFacelets(packed []byte) (CubeState, error) {
	return types.UnpackFacelets(packed)
}

// PackFacelets packs a CubeState into 27 bytes, two facelets per byte.
func PackFacelets(s CubeState) [types.PackedFaceletBytes]byte {
	return types.PackFacelets(s)
}

// FormatMoves formats moves as a space-separated string.
func FormatMoves(moves []Move) string {
	return types.FormatMoves(moves)
}

// Frame is a decoded inbound notification.
type Frame struct {
	Type     string    // hello, state_change or sync_echo
	Opcode   byte
	State    CubeState
	Move     *Move // Nil unless the frame carries a recognized move
	Battery  int   // -1 when the frame carries no battery level
	NeedsAck bool
	CRCValid bool
	Data     []byte // Decrypted buffer
}

// DecodeFrame decrypts and decodes one raw notification without a session.
// Useful for offline inspection of captured traffic.
func DecodeFrame(raw []byte) (*Frame, error) {
	f, err := protocol.ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Decode(f)
	if err != nil {
		return nil, err
	}

	out := &Frame{
		Type:     protocol.MessageTypeName(msg.Type),
		Opcode:   msg.Type,
		State:    msg.State,
		Battery:  msg.Battery,
		NeedsAck: msg.NeedsAck,
		CRCValid: f.VerifyCRC() == nil,
		Data:     f.Data,
	}
	if msg.Move >= 0 {
		if face, ok := types.FaceForMoveCode(byte(msg.Move)); ok {
			out.Move = &Move{Face: face, Code: byte(msg.Move)}
		}
	}
	return out, nil
}
