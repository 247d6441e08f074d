package padding

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidPadding is returned by Unpad when the trailing block does not carry valid padding
var ErrInvalidPadding = errors.New("invalid padding")

// Padding identifiers, as used in transformation strings ("SEED/CBC/PKCS7PADDING")
const (
	None     = "NOPADDING"
	PKCS7    = "PKCS7PADDING"
	Zeros    = "ZEROBYTEPADDING"
	ANSIX923 = "X923PADDING"
	ISO10126 = "ISO10126PADDING"
)

// Padder interface defines the padding contract.
// Pad extends the final chunk to a multiple of blockSize and may return a new
// slice; Unpad expects a block-aligned buffer and strips the padding from its
// last block.
type Padder interface {
	Pad(data []byte, blockSize int) ([]byte, error)
	Unpad(data []byte, blockSize int) ([]byte, error)
	Name() string
}

// NoPadding - Data must already be block aligned
type NoPadding struct{}

func (n *NoPadding) Name() string {
	return None
}

func (n *NoPadding) Pad(data []byte, blockSize int) ([]byte, error) {
	return data, nil
}

func (n *NoPadding) Unpad(data []byte, blockSize int) ([]byte, error) {
	return data, nil
}

// ZeroPadding - Pad with zero bytes
type ZeroPadding struct{}

func (z *ZeroPadding) Name() string {
	return Zeros
}

func (z *ZeroPadding) Pad(data []byte, blockSize int) ([]byte, error) {
	// All zeros, a full block when data is already aligned
	return append(data, make([]byte, padLen(len(data), blockSize))...), nil
}

func (z *ZeroPadding) Unpad(data []byte, blockSize int) ([]byte, error) {
	if err := checkAligned(data, blockSize); err != nil {
		return nil, err
	}

	// Only trailing zeros of the final block are padding
	i := len(data) - 1
	for i >= len(data)-blockSize && data[i] == 0 {
		i--
	}

	return data[:i+1], nil
}

// PKCS7Padding - PKCS#7 padding scheme
type PKCS7Padding struct{}

func (p *PKCS7Padding) Name() string {
	return PKCS7
}

func (p *PKCS7Padding) Pad(data []byte, blockSize int) ([]byte, error) {
	paddingLen := padLen(len(data), blockSize)
	padding := make([]byte, paddingLen)
	for i := range padding {
		padding[i] = byte(paddingLen)
	}
	return append(data, padding...), nil
}

func (p *PKCS7Padding) Unpad(data []byte, blockSize int) ([]byte, error) {
	if err := checkAligned(data, blockSize); err != nil {
		return nil, err
	}

	last := data[len(data)-blockSize:]
	paddingLen := last[blockSize-1]

	// Every byte of the final block is inspected regardless of where the
	// first mismatch occurs.
	good := checkLength(paddingLen, blockSize)
	for i := 0; i < blockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(blockSize, i+int(paddingLen))
		match := subtle.ConstantTimeByteEq(last[i], paddingLen)
		good &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	if good != 1 {
		return nil, ErrInvalidPadding
	}

	return data[:len(data)-int(paddingLen)], nil
}

// ANSIX923Padding - ANSI X9.23 padding scheme
type ANSIX923Padding struct{}

func (a *ANSIX923Padding) Name() string {
	return ANSIX923
}

func (a *ANSIX923Padding) Pad(data []byte, blockSize int) ([]byte, error) {
	paddingLen := padLen(len(data), blockSize)
	padding := make([]byte, paddingLen)
	// All zeros except last byte which is the padding length
	padding[paddingLen-1] = byte(paddingLen)
	return append(data, padding...), nil
}

func (a *ANSIX923Padding) Unpad(data []byte, blockSize int) ([]byte, error) {
	if err := checkAligned(data, blockSize); err != nil {
		return nil, err
	}

	last := data[len(data)-blockSize:]
	paddingLen := last[blockSize-1]

	good := checkLength(paddingLen, blockSize)
	for i := 0; i < blockSize-1; i++ {
		inPad := subtle.ConstantTimeLessOrEq(blockSize, i+int(paddingLen))
		zero := subtle.ConstantTimeByteEq(last[i], 0)
		good &= subtle.ConstantTimeSelect(inPad, zero, 1)
	}
	if good != 1 {
		return nil, ErrInvalidPadding
	}

	return data[:len(data)-int(paddingLen)], nil
}

// ISO10126Padding - ISO 10126 padding scheme. Filler bytes come from Random,
// or crypto/rand when it is nil.
type ISO10126Padding struct {
	Random io.Reader
}

func (i *ISO10126Padding) Name() string {
	return ISO10126
}

func (i *ISO10126Padding) Pad(data []byte, blockSize int) ([]byte, error) {
	random := i.Random
	if random == nil {
		random = rand.Reader
	}

	paddingLen := padLen(len(data), blockSize)
	padding := make([]byte, paddingLen)
	// Random bytes except last byte which is the padding length
	if _, err := io.ReadFull(random, padding[:paddingLen-1]); err != nil {
		return nil, fmt.Errorf("padding: random source failed: %w", err)
	}
	padding[paddingLen-1] = byte(paddingLen)
	return append(data, padding...), nil
}

func (i *ISO10126Padding) Unpad(data []byte, blockSize int) ([]byte, error) {
	if err := checkAligned(data, blockSize); err != nil {
		return nil, err
	}

	paddingLen := data[len(data)-1]
	if checkLength(paddingLen, blockSize) != 1 {
		return nil, ErrInvalidPadding
	}

	return data[:len(data)-int(paddingLen)], nil
}

// GetPadder returns a Padder implementation for the given padding name
func GetPadder(paddingName string) Padder {
	switch paddingName {
	case None:
		return &NoPadding{}
	case Zeros:
		return &ZeroPadding{}
	case PKCS7:
		return &PKCS7Padding{}
	case ANSIX923:
		return &ANSIX923Padding{}
	case ISO10126:
		return &ISO10126Padding{}
	default:
		return nil
	}
}

// padLen is never zero: aligned input gets a whole block of padding
func padLen(n, blockSize int) int {
	return blockSize - n%blockSize
}

func checkAligned(data []byte, blockSize int) error {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return fmt.Errorf("%w: padded data of %d bytes is not a positive multiple of %d", ErrInvalidPadding, len(data), blockSize)
	}
	return nil
}

// checkLength returns 1 when 1 <= n <= blockSize
func checkLength(n byte, blockSize int) int {
	return subtle.ConstantTimeLessOrEq(1, int(n)) & subtle.ConstantTimeLessOrEq(int(n), blockSize)
}
