// Package protocol implements the QiYi smart cube BLE frame protocol.
//
// Every frame is AES-128-ECB encrypted with a fixed key. Decrypted, a frame
// looks like:
//
//	[0xFE] [L] [opcode] [payload...] [crc lo] [crc hi] [zero padding...]
//
// where L is the logical length including the two header bytes and the
// CRC-16/MODBUS trailer, and the CRC covers bytes [0, L-2).
package protocol

import (
	"encoding/binary"
	"fmt"
)

// BLE service and characteristic UUIDs. One characteristic carries both
// notifications and writes.
const (
	ServiceUUID        = "0000fff0-0000-1000-8000-00805f9b34fb"
	CharacteristicUUID = "0000fff6-0000-1000-8000-00805f9b34fb"

	// DeviceNamePrefix is the advertised name prefix of the cube.
	DeviceNamePrefix = "QY-QYSC"
)

// Frame envelope constants.
const (
	Marker           byte = 0xFE
	HeaderLen             = 2
	CRCLen                = 2
	MaxLogicalLength      = 255
)

// Byte offsets into a decrypted frame.
const (
	OffsetMarker = 0
	OffsetLength = 1
	OffsetOpcode = 2

	// Echoed back in acknowledgments.
	AckHeadStart = 2
	AckHeadEnd   = 7

	FaceletsStart  = 7
	FaceletsEnd    = 34
	OffsetMove     = 34
	OffsetBattery  = 35
	OffsetNeedsAck = 91
)

// Frame is a decrypted inbound frame that passed the marker check.
type Frame struct {
	Opcode byte
	Length int    // Logical length from the header
	Data   []byte // Decrypted buffer, padding included
}

// BuildFrame wraps body in the frame envelope and encrypts it.
//
// The logical length is len(body)+2. The CRC trailer is written over the
// last two bytes of body, so callers reserve them.
func BuildFrame(body []byte) ([]byte, error) {
	length := len(body) + HeaderLen
	if length > MaxLogicalLength {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLong, length)
	}
	if len(body) < CRCLen {
		return nil, fmt.Errorf("%w: body of %d bytes has no room for the CRC", ErrShortFrame, len(body))
	}

	msg := make([]byte, paddedLen(length))
	msg[OffsetMarker] = Marker
	msg[OffsetLength] = byte(length)
	copy(msg[HeaderLen:], body)
	PutCRC16(msg[length-CRCLen:], CRC16(msg[:length-CRCLen]))

	return Encrypt(msg), nil
}

// ParseFrame decrypts raw and checks the marker byte.
// The CRC trailer is not checked; see VerifyCRC.
func ParseFrame(raw []byte) (*Frame, error) {
	data, err := Decrypt(raw)
	if err != nil {
		return nil, err
	}
	if len(data) <= OffsetOpcode {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(data))
	}
	if data[OffsetMarker] != Marker {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidMarker, data[OffsetMarker])
	}

	return &Frame{
		Opcode: data[OffsetOpcode],
		Length: int(data[OffsetLength]),
		Data:   data,
	}, nil
}

// Logical returns the frame bytes up to the logical length.
func (f *Frame) Logical() []byte {
	if f.Length > len(f.Data) {
		return f.Data
	}
	return f.Data[:f.Length]
}

// VerifyCRC checks the trailer against the logical message.
func (f *Frame) VerifyCRC() error {
	if f.Length < HeaderLen+CRCLen || f.Length > len(f.Data) {
		return fmt.Errorf("%w: logical length %d for %d byte buffer", ErrShortFrame, f.Length, len(f.Data))
	}
	want := binary.LittleEndian.Uint16(f.Data[f.Length-CRCLen : f.Length])
	got := CRC16(f.Data[:f.Length-CRCLen])
	if got != want {
		return fmt.Errorf("%w: trailer 0x%04X, computed 0x%04X", ErrChecksum, want, got)
	}
	return nil
}
