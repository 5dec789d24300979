package qiyicube

import (
	"errors"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
)

// Sentinel errors for the qiyicube package.
var (
	// Connection errors
	ErrNotConnected     = errors.New("qiyicube: not connected to device")
	ErrAlreadyStarted   = errors.New("qiyicube: session already started")
	ErrDeviceNotFound   = errors.New("qiyicube: device not found")
	ErrConnectionFailed = errors.New("qiyicube: connection failed")
	ErrInvalidAddress   = errors.New("qiyicube: invalid hardware address")

	// Frame errors. Malformed frames are dropped by the session; these are
	// returned by DecodeFrame.
	ErrFormat   = protocol.ErrFormat
	ErrProtocol = protocol.ErrProtocol
)
