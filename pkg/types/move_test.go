package types

import "testing"

func TestFaceForMoveCode(t *testing.T) {
	want := []Face{FaceU, FaceD, FaceL, FaceR, FaceF, FaceB}
	for code, face := range want {
		got, ok := FaceForMoveCode(byte(code))
		if !ok || got != face {
			t.Errorf("code %d = %q (%v), want %q", code, got, ok, face)
		}
	}

	for _, code := range []byte{6, 0x0F, 0xFF} {
		if _, ok := FaceForMoveCode(code); ok {
			t.Errorf("code %d should not map to a face", code)
		}
	}
}

func TestFormatMoves(t *testing.T) {
	moves := []Move{{Face: FaceL}, {Face: FaceU}, {Face: FaceR}}
	if got := FormatMoves(moves); got != "L U R" {
		t.Errorf("FormatMoves() = %q, want %q", got, "L U R")
	}
	if got := FormatMoves(nil); got != "" {
		t.Errorf("FormatMoves(nil) = %q, want empty", got)
	}
}
