package encryption

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	SeedBlockSize = 16 // 128-bit blocks (16 bytes)
	SeedKeySize   = 16 // 128-bit key (16 bytes)

	bitsPerByte = 8
)

// Randomness is the secure random source used to generate keys and IVs
type Randomness interface {
	// GetBytes returns count random bytes
	GetBytes(count int) ([]byte, error)

	// GenerateKey returns a fresh key of keySizeBits bits
	GenerateKey(keySizeBits int) ([]byte, error)
}

// SecureRandom reads from a cryptographically secure reader
type SecureRandom struct {
	reader io.Reader
}

// NewSecureRandom wraps r; a nil r selects crypto/rand
func NewSecureRandom(r io.Reader) *SecureRandom {
	if r == nil {
		r = rand.Reader
	}
	return &SecureRandom{reader: r}
}

func (s *SecureRandom) GetBytes(count int) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative byte count %d", ErrInvalidArgument, count)
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(s.reader, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

func (s *SecureRandom) GenerateKey(keySizeBits int) ([]byte, error) {
	if keySizeBits <= 0 || keySizeBits%bitsPerByte != 0 {
		return nil, fmt.Errorf("%w: key size %d bits", ErrInvalidArgument, keySizeBits)
	}
	return s.GetBytes(keySizeBits / bitsPerByte)
}
