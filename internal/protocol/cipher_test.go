package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, n := range []int{1, 7, 15, 16, 17, 31, 32, 40, 96} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*7 + 1)
		}

		enc := Encrypt(data)
		if len(enc)%BlockSize != 0 {
			t.Fatalf("len %d: ciphertext length %d not block aligned", n, len(enc))
		}
		if len(enc) != paddedLen(n) {
			t.Errorf("len %d: ciphertext length = %d, want %d", n, len(enc), paddedLen(n))
		}

		dec, err := Decrypt(enc)
		if err != nil {
			t.Fatalf("len %d: Decrypt() error = %v", n, err)
		}

		want := make([]byte, paddedLen(n))
		copy(want, data)
		if !bytes.Equal(dec, want) {
			t.Errorf("len %d: round trip = % X, want % X", n, dec, want)
		}
	}
}

func TestEncryptAlignedInputNotPadded(t *testing.T) {
	if got := len(Encrypt(make([]byte, 32))); got != 32 {
		t.Errorf("Encrypt(32 bytes) length = %d, want 32", got)
	}
	if got := len(Encrypt(nil)); got != 0 {
		t.Errorf("Encrypt(nil) length = %d, want 0", got)
	}
}

func TestEncryptIsBlockwise(t *testing.T) {
	block := []byte("0123456789abcdef")
	enc := Encrypt(append(append([]byte{}, block...), block...))
	if !bytes.Equal(enc[:BlockSize], enc[BlockSize:]) {
		t.Error("identical plaintext blocks should encrypt identically")
	}
	if bytes.Equal(enc[:BlockSize], block) {
		t.Error("ciphertext should differ from plaintext")
	}
}

func TestEncryptDoesNotModifyInput(t *testing.T) {
	data := []byte("0123456789abcdef")
	orig := append([]byte{}, data...)
	Encrypt(data)
	if !bytes.Equal(data, orig) {
		t.Error("Encrypt modified its input")
	}
}

func TestDecryptRejectsUnalignedInput(t *testing.T) {
	for _, n := range []int{1, 15, 17, 33} {
		_, err := Decrypt(make([]byte, n))
		if !errors.Is(err, ErrBlockSize) {
			t.Errorf("len %d: err = %v, want ErrBlockSize", n, err)
		}
		if !errors.Is(err, ErrFormat) {
			t.Errorf("len %d: err should be a format error", n)
		}
	}
}

func TestEncryptKnownAnswer(t *testing.T) {
	want := []byte{
		0x4E, 0x7F, 0xED, 0x1C, 0xB6, 0x70, 0xC2, 0x1C,
		0x17, 0xA7, 0x71, 0x22, 0x22, 0x0E, 0x88, 0x37,
	}
	if got := Encrypt(make([]byte, BlockSize)); !bytes.Equal(got, want) {
		t.Errorf("Encrypt(zero block) = % X, want % X", got, want)
	}
}
