package types

import (
	"errors"
	"strings"
	"testing"
)

func TestSolvedStateIsSolved(t *testing.T) {
	if !SolvedState.IsSolved() {
		t.Error("SolvedState should be solved")
	}
	if !IsSolved(SolvedState[:]) {
		t.Error("IsSolved(SolvedState) should be true")
	}
}

func TestSingleFaceletFlipBreaksSolved(t *testing.T) {
	for i := 0; i < FaceletCount; i++ {
		s := SolvedState
		s[i] = (s[i] + 1) % 6
		if s.IsSolved() {
			t.Errorf("flipping facelet %d should break solved", i)
		}
		if IsSolved(s[:]) {
			t.Errorf("IsSolved with facelet %d flipped should be false", i)
		}
	}
}

func TestIsSolvedRequires54(t *testing.T) {
	if IsSolved(SolvedState[:53]) {
		t.Error("53 facelets should not count as solved")
	}
	if IsSolved(append(SolvedState[:], 0)) {
		t.Error("55 facelets should not count as solved")
	}
	if IsSolved(nil) {
		t.Error("nil should not count as solved")
	}
}

func TestUnpackZeroBytes(t *testing.T) {
	s, err := UnpackFacelets(make([]byte, PackedFaceletBytes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range s {
		if c != 0 {
			t.Fatalf("facelet %d = %d, want 0", i, c)
		}
	}
}

func TestUnpackNibbleOrder(t *testing.T) {
	packed := make([]byte, PackedFaceletBytes)
	packed[0] = 0x31
	s, err := UnpackFacelets(packed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s[0] != 1 || s[1] != 3 {
		t.Errorf("first pair = [%d,%d], want [1,3]", s[0], s[1])
	}
}

func TestUnpackTooShort(t *testing.T) {
	_, err := UnpackFacelets(make([]byte, 26))
	if !errors.Is(err, ErrFaceletLength) {
		t.Errorf("err = %v, want ErrFaceletLength", err)
	}
}

func TestPackUnpackSolved(t *testing.T) {
	packed := PackFacelets(SolvedState)
	if packed[0] != 0x33 {
		t.Errorf("packed[0] = 0x%02X, want 0x33", packed[0])
	}
	if packed[4] != 0x13 {
		t.Errorf("packed[4] = 0x%02X, want 0x13 (U/R boundary)", packed[4])
	}
	s, err := UnpackFacelets(packed[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != SolvedState {
		t.Error("unpack(pack(solved)) should equal solved")
	}
}

func TestNotation(t *testing.T) {
	got := SolvedState.Notation()
	want := strings.Repeat("U", 9) + strings.Repeat("R", 9) + strings.Repeat("F", 9) +
		strings.Repeat("D", 9) + strings.Repeat("L", 9) + strings.Repeat("B", 9)
	if got != want {
		t.Errorf("Notation() = %q, want %q", got, want)
	}
}

func TestNotationLetterTable(t *testing.T) {
	tests := []struct {
		color FaceletColor
		want  byte
	}{
		{0, 'L'},
		{1, 'R'},
		{2, 'D'},
		{3, 'U'},
		{4, 'F'},
		{5, 'B'},
		{9, '?'},
	}

	for _, tt := range tests {
		var s CubeState
		for i := range s {
			s[i] = tt.color
		}
		got := s.Notation()
		if len(got) != FaceletCount {
			t.Fatalf("notation length = %d, want %d", len(got), FaceletCount)
		}
		if got[0] != tt.want {
			t.Errorf("color %d: letter = %c, want %c", tt.color, got[0], tt.want)
		}
	}
}

func TestNotationWrongLength(t *testing.T) {
	if got := Notation(SolvedState[:10]); got != "" {
		t.Errorf("Notation(10 facelets) = %q, want empty", got)
	}
}

func TestFace(t *testing.T) {
	f := SolvedState.Face(FaceF)
	for i, c := range f {
		if c != ColorGreen {
			t.Errorf("F facelet %d = %d, want %d", i, c, ColorGreen)
		}
	}
}

func TestEmoji(t *testing.T) {
	if ColorWhite.Emoji() != "⬜" {
		t.Errorf("white emoji = %q", ColorWhite.Emoji())
	}
	if FaceletColor(7).Emoji() != "?" {
		t.Error("unknown color should render as ?")
	}
}
