// Package types contains shared type definitions for the qiyicube library.
package types

import (
	"strings"
	"time"
)

// Face represents a cube face in standard notation.
type Face string

const (
	FaceR Face = "R" // Right
	FaceL Face = "L" // Left
	FaceU Face = "U" // Up
	FaceD Face = "D" // Down
	FaceF Face = "F" // Front
	FaceB Face = "B" // Back
)

// moveCodeFaces maps the device move byte to a face label.
// The device uses U,D,L,R,F,B order here, not the facelet face order.
var moveCodeFaces = [...]Face{FaceU, FaceD, FaceL, FaceR, FaceF, FaceB}

// FaceForMoveCode returns the face label for a device move code.
// The second result is false for codes outside [0,5].
func FaceForMoveCode(code byte) (Face, bool) {
	if int(code) >= len(moveCodeFaces) {
		return "", false
	}
	return moveCodeFaces[code], true
}

// Move is a face turn recognized from a move notification.
type Move struct {
	Face Face      `json:"face"`
	Code byte      `json:"code"` // Raw device move code
	Time time.Time `json:"time"` // When the notification was processed
}

// Notation returns the face label of the move.
func (m Move) Notation() string {
	return string(m.Face)
}

// String returns the notation string (alias for Notation).
func (m Move) String() string {
	return m.Notation()
}

// FormatMoves formats a slice of moves as a space-separated notation string.
func FormatMoves(moves []Move) string {
	if len(moves) == 0 {
		return ""
	}

	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.Notation()
	}

	return strings.Join(parts, " ")
}
