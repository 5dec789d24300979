package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// BlockSize is the cipher block size; every frame on the wire is a multiple of it.
const BlockSize = aes.BlockSize

// cubeKey is provisioned in the cube firmware and must not change.
var cubeKey = [16]byte{87, 177, 249, 171, 205, 90, 232, 167, 156, 185, 140, 231, 87, 140, 81, 8}

var frameCipher = mustCipher(cubeKey[:])

func mustCipher(key []byte) cipher.Block {
	b, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("protocol: bad cube key: %v", err))
	}
	return b
}

// paddedLen rounds n up to the next multiple of BlockSize.
func paddedLen(n int) int {
	return (n + BlockSize - 1) / BlockSize * BlockSize
}

// Encrypt zero-pads data to a multiple of BlockSize and enciphers each block
// independently (ECB). Aligned input gets no extra padding. The scheme is
// unauthenticated and deterministic; it exists for wire compatibility only.
func Encrypt(data []byte) []byte {
	out := make([]byte, paddedLen(len(data)))
	copy(out, data)
	for i := 0; i < len(out); i += BlockSize {
		frameCipher.Encrypt(out[i:i+BlockSize], out[i:i+BlockSize])
	}
	return out
}

// Decrypt deciphers ECB blocks. Padding is left in place; the logical length
// comes from the frame header.
func Decrypt(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBlockSize, len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += BlockSize {
		frameCipher.Decrypt(out[i:i+BlockSize], data[i:i+BlockSize])
	}
	return out, nil
}
