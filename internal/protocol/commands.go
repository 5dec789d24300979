package protocol

import (
	"fmt"
	"net"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// App hello layout.
const (
	AppHelloLen  = 19
	helloMACFrom = 11
	helloMACTo   = 17
)

// Sync-state layout.
const (
	SyncStateLen   = 37
	syncFaceletsAt = 5
)

var syncHeader = [syncFaceletsAt]byte{0x04, 0x17, 0x88, 0x8B, 0x31}

// ParseMAC parses a 6-byte hardware address such as "CC:A3:00:00:25:13".
func ParseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return mac, fmt.Errorf("%w: %v", ErrInvalidMAC, err)
	}
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("%w: %q is not a 6-byte address", ErrInvalidMAC, s)
	}
	copy(mac[:], hw)
	return mac, nil
}

// BuildAppHello builds the body of the handshake sent after subscribing.
// The hardware address is written in reverse byte order at [11,17).
func BuildAppHello(mac [6]byte) []byte {
	data := make([]byte, AppHelloLen)
	for i := range mac {
		data[helloMACFrom+i] = mac[len(mac)-1-i]
	}
	return data
}

// BuildSyncState builds the body that asks the cube to adopt state.
func BuildSyncState(state types.CubeState) []byte {
	data := make([]byte, SyncStateLen)
	copy(data, syncHeader[:])
	packed := types.PackFacelets(state)
	copy(data[syncFaceletsAt:], packed[:])
	return data
}

// BuildSyncSolved builds a sync-state body for the solved cube.
func BuildSyncSolved() []byte {
	return BuildSyncState(types.SolvedState)
}
