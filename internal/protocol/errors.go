package protocol

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package wraps one of them.
var (
	// ErrFormat covers buffers that are the wrong size for the operation.
	ErrFormat = errors.New("protocol: malformed frame")

	// ErrProtocol covers well-formed buffers the protocol does not accept.
	ErrProtocol = errors.New("protocol: unexpected frame")
)

var (
	ErrBlockSize     = fmt.Errorf("%w: length is not a multiple of the block size", ErrFormat)
	ErrShortFrame    = fmt.Errorf("%w: frame too short", ErrFormat)
	ErrFrameTooLong  = fmt.Errorf("%w: logical length exceeds 255", ErrFormat)
	ErrInvalidMarker = fmt.Errorf("%w: invalid marker byte", ErrProtocol)
	ErrUnknownOpcode = fmt.Errorf("%w: unknown opcode", ErrProtocol)
	ErrChecksum      = fmt.Errorf("%w: checksum mismatch", ErrProtocol)
	ErrInvalidMAC    = errors.New("protocol: invalid hardware address")
)
