package cli

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/qiyicube_ble_library"
)

var (
	decodeJSON bool
	decodeRaw  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode captured notification frames",
	Long: `Decrypt and decode raw notification payloads captured from a cube.
Each argument, or each line of stdin when no arguments are given, is one
encrypted frame in hex. Spaces and colons are ignored.`,
	Example: `  qiyicube decode "4e7fed1cb670c21c17a77122220e8837..."
  cat capture.txt | qiyicube decode --json`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print one JSON object per frame")
	decodeCmd.Flags().BoolVar(&decodeRaw, "raw", false, "Also print the decrypted bytes")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		for _, arg := range args {
			decodeOne(out, arg)
		}
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		decodeOne(out, line)
	}
	return scanner.Err()
}

// decodedFrame is the JSON form of a decoded frame.
type decodedFrame struct {
	Type      string `json:"type"`
	Opcode    string `json:"opcode"`
	Facelets  string `json:"facelets"`
	Solved    bool   `json:"solved"`
	Move      string `json:"move,omitempty"`
	Battery   *int   `json:"battery,omitempty"`
	NeedsAck  bool   `json:"needs_ack"`
	CRCValid  bool   `json:"crc_valid"`
	Decrypted string `json:"decrypted,omitempty"`
	Error     string `json:"error,omitempty"`
}

func decodeOne(out io.Writer, input string) {
	d := decodeHex(input)

	if decodeJSON {
		data, _ := json.Marshal(d)
		fmt.Fprintln(out, string(data))
		return
	}

	if d.Error != "" {
		fmt.Fprintf(out, "error: %s\n\n", d.Error)
		return
	}

	fmt.Fprintf(out, "type:      %s (%s)\n", d.Type, d.Opcode)
	fmt.Fprintf(out, "facelets:  %s\n", d.Facelets)
	fmt.Fprintf(out, "solved:    %t\n", d.Solved)
	if d.Move != "" {
		fmt.Fprintf(out, "move:      %s\n", d.Move)
	}
	if d.Battery != nil {
		fmt.Fprintf(out, "battery:   %d%%\n", *d.Battery)
	}
	fmt.Fprintf(out, "needs ack: %t\n", d.NeedsAck)
	fmt.Fprintf(out, "crc valid: %t\n", d.CRCValid)
	if d.Decrypted != "" {
		fmt.Fprintf(out, "decrypted: %s\n", d.Decrypted)
	}
	fmt.Fprintln(out)
}

func decodeHex(input string) decodedFrame {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(input)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return decodedFrame{Error: fmt.Sprintf("invalid hex: %v", err)}
	}

	f, err := qiyicube.DecodeFrame(raw)
	if err != nil {
		return decodedFrame{Error: err.Error()}
	}

	d := decodedFrame{
		Type:     f.Type,
		Opcode:   fmt.Sprintf("0x%02x", f.Opcode),
		Facelets: f.State.Notation(),
		Solved:   f.State.IsSolved(),
		NeedsAck: f.NeedsAck,
		CRCValid: f.CRCValid,
	}
	if f.Move != nil {
		d.Move = f.Move.Notation()
	}
	if f.Battery >= 0 {
		battery := f.Battery
		d.Battery = &battery
	}
	if decodeRaw {
		d.Decrypted = fmt.Sprintf("% x", f.Data)
	}
	return d
}
