package types

import (
	"errors"
	"fmt"
	"strings"
)

// Facelet layout constants.
const (
	FaceletCount       = 54 // Total facelets on a 3x3 cube
	FaceletsPerFace    = 9
	PackedFaceletBytes = 27 // Two facelets per byte on the wire
)

// ErrFaceletLength is returned when a packed facelet buffer is too short.
var ErrFaceletLength = errors.New("types: packed facelets must be 27 bytes")

// FaceletColor is a device color code in the range [0,5].
type FaceletColor uint8

// Device color codes.
const (
	ColorOrange FaceletColor = 0 // L when solved
	ColorRed    FaceletColor = 1 // R when solved
	ColorYellow FaceletColor = 2 // D when solved
	ColorWhite  FaceletColor = 3 // U when solved
	ColorGreen  FaceletColor = 4 // F when solved
	ColorBlue   FaceletColor = 5 // B when solved
)

var colorEmoji = [...]string{"🟧", "🟥", "🟨", "⬜", "🟩", "🟦"}

// Valid reports whether c is one of the six device colors.
func (c FaceletColor) Valid() bool {
	return c <= ColorBlue
}

// Emoji returns a square emoji for the color, or "?" for unknown codes.
func (c FaceletColor) Emoji() string {
	if !c.Valid() {
		return "?"
	}
	return colorEmoji[c]
}

// notationLetters maps color codes to the letters of the notation string.
// This table intentionally differs from the face order of SolvedState.
var notationLetters = [...]byte{'L', 'R', 'D', 'U', 'F', 'B'}

// FaceOrder is the order in which faces appear in a CubeState.
var FaceOrder = [6]Face{FaceU, FaceR, FaceF, FaceD, FaceL, FaceB}

// CubeState holds the 54 facelet colors, face by face in FaceOrder.
// The position of each facelet within a face is whatever the device reports.
type CubeState [FaceletCount]FaceletColor

// SolvedState is the only configuration reported as solved.
var SolvedState = CubeState{
	3, 3, 3, 3, 3, 3, 3, 3, 3, // U
	1, 1, 1, 1, 1, 1, 1, 1, 1, // R
	4, 4, 4, 4, 4, 4, 4, 4, 4, // F
	2, 2, 2, 2, 2, 2, 2, 2, 2, // D
	0, 0, 0, 0, 0, 0, 0, 0, 0, // L
	5, 5, 5, 5, 5, 5, 5, 5, 5, // B
}

// UnpackFacelets expands 27 packed bytes into 54 facelets.
// The low nibble of each byte comes first. Bytes past the 27th are ignored.
func UnpackFacelets(packed []byte) (CubeState, error) {
	var s CubeState
	if len(packed) < PackedFaceletBytes {
		return s, fmt.Errorf("%w: got %d", ErrFaceletLength, len(packed))
	}
	for i, b := range packed[:PackedFaceletBytes] {
		s[i*2] = FaceletColor(b & 0x0F)
		s[i*2+1] = FaceletColor(b >> 4)
	}
	return s, nil
}

// PackFacelets is the inverse of UnpackFacelets.
func PackFacelets(s CubeState) [PackedFaceletBytes]byte {
	var out [PackedFaceletBytes]byte
	for i := range out {
		out[i] = byte(s[i*2]&0x0F) | byte(s[i*2+1]&0x0F)<<4
	}
	return out
}

// IsSolved reports whether facelets has exactly 54 entries equal to SolvedState.
func IsSolved(facelets []FaceletColor) bool {
	if len(facelets) != FaceletCount {
		return false
	}
	for i, c := range facelets {
		if c != SolvedState[i] {
			return false
		}
	}
	return true
}

// Notation encodes facelets as a 54-letter string.
// Returns "" unless exactly 54 facelets are given; unknown codes become '?'.
func Notation(facelets []FaceletColor) string {
	if len(facelets) != FaceletCount {
		return ""
	}
	var b strings.Builder
	b.Grow(FaceletCount)
	for _, c := range facelets {
		if c.Valid() {
			b.WriteByte(notationLetters[c])
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

// IsSolved reports whether the state equals SolvedState.
func (s CubeState) IsSolved() bool {
	return s == SolvedState
}

// Notation returns the 54-letter notation string for the state.
func (s CubeState) Notation() string {
	return Notation(s[:])
}

// Face returns the nine facelets of face f, or zero values for an unknown face.
func (s CubeState) Face(f Face) [FaceletsPerFace]FaceletColor {
	var out [FaceletsPerFace]FaceletColor
	for i, face := range FaceOrder {
		if face == f {
			copy(out[:], s[i*FaceletsPerFace:(i+1)*FaceletsPerFace])
			break
		}
	}
	return out
}
