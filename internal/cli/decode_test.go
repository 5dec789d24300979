package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

func encryptedStateChange(t *testing.T, move, battery byte) string {
	t.Helper()
	// The body starts at the opcode; BuildFrame adds marker and length.
	at := func(offset int) int { return offset - protocol.HeaderLen }
	body := make([]byte, 94)
	body[at(protocol.OffsetOpcode)] = protocol.OpStateChange
	packed := types.PackFacelets(types.SolvedState)
	copy(body[at(protocol.FaceletsStart):], packed[:])
	body[at(protocol.OffsetMove)] = move
	body[at(protocol.OffsetBattery)] = battery

	frame, err := protocol.BuildFrame(body)
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	return hex.EncodeToString(frame)
}

func TestDecodeHex(t *testing.T) {
	d := decodeHex(encryptedStateChange(t, 3, 42))
	if d.Error != "" {
		t.Fatalf("decode error = %s", d.Error)
	}
	if d.Type != "state_change" || d.Opcode != "0x03" {
		t.Errorf("type = %s (%s)", d.Type, d.Opcode)
	}
	if d.Move != "R" || d.Battery == nil || *d.Battery != 42 {
		t.Errorf("move = %q, battery = %v", d.Move, d.Battery)
	}
	if !d.Solved || !d.CRCValid {
		t.Errorf("solved = %t, crc = %t", d.Solved, d.CRCValid)
	}
}

func TestDecodeHexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"not hex", "zz", "invalid hex"},
		{"not a block", "00112233", "block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decodeHex(tt.input)
			if !strings.Contains(d.Error, tt.want) {
				t.Errorf("error = %q, want it to mention %q", d.Error, tt.want)
			}
		})
	}
}

func TestDecodeCommandReadsStdin(t *testing.T) {
	frame := encryptedStateChange(t, 0, 10)

	var out bytes.Buffer
	decodeCmd.SetOut(&out)
	decodeCmd.SetIn(strings.NewReader("# capture\n" + frame + "\n\n"))
	decodeJSON = true
	defer func() {
		decodeJSON = false
		decodeCmd.SetOut(nil)
		decodeCmd.SetIn(nil)
	}()

	if err := runDecode(decodeCmd, nil); err != nil {
		t.Fatalf("runDecode() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), out.String())
	}
	var d decodedFrame
	if err := json.Unmarshal([]byte(lines[0]), &d); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if d.Move != "U" || d.Type != "state_change" {
		t.Errorf("decoded = %+v", d)
	}
}
