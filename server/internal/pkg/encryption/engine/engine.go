// Package engine provides buffered block-cipher engines selected by a
// transformation string of the form "ALGORITHM/MODE/PADDING", for example
// "SEED/CBC/PKCS7PADDING" or "SEED/CFB/NOPADDING".
package engine

import (
	"errors"
	"fmt"
	"strings"

	"SeedCrypt/server/internal/pkg/encryption/modes"
	"SeedCrypt/server/internal/pkg/encryption/padding"
)

var (
	ErrUnknownAlgorithm    = errors.New("unknown algorithm")
	ErrUnknownPadding      = errors.New("unknown padding")
	ErrBadTransformation   = errors.New("malformed transformation")
	ErrDataNotBlockAligned = errors.New("data not block aligned")
	ErrOutputTooShort      = errors.New("output buffer too short")
	ErrFinished            = errors.New("engine already finished")
)

// Cipher is a buffered engine: ProcessBytes emits every complete segment it
// can, DoFinal flushes the rest and applies or strips padding.
// A Cipher carries chaining state and is not safe for concurrent use.
type Cipher struct {
	mode       modes.Mode
	padder     padding.Padder
	encrypting bool
	blockSize  int
	buf        []byte
	finished   bool
}

// New creates an engine for transformation, keyed with key. A nil iv leaves
// chaining modes on an all-zero register.
func New(transformation string, key, iv []byte, encrypting bool) (*Cipher, error) {
	parts := strings.Split(transformation, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrBadTransformation, transformation)
	}

	padder := padding.GetPadder(strings.ToUpper(parts[2]))
	if padder == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPadding, parts[2])
	}

	block, err := newBlock(parts[0], key)
	if err != nil {
		return nil, err
	}

	mode, err := modes.New(parts[1], block, iv, encrypting)
	if err != nil {
		return nil, err
	}

	return &Cipher{
		mode:       mode,
		padder:     padder,
		encrypting: encrypting,
		blockSize:  block.BlockSize(),
	}, nil
}

// BlockSize returns the underlying primitive's block size in bytes
func (c *Cipher) BlockSize() int {
	return c.blockSize
}

// Mode returns the name of the running mode
func (c *Cipher) Mode() string {
	return c.mode.Name()
}

// Padding returns the padding identifier
func (c *Cipher) Padding() string {
	return c.padder.Name()
}

// UpdateOutputSize is the number of bytes ProcessBytes would emit for n more input bytes
func (c *Cipher) UpdateOutputSize(n int) int {
	return c.ready(len(c.buf) + n)
}

// ProcessBytes feeds in and writes every segment that can be released into
// out, returning the count written. When decrypting with padding the last
// complete segment is held back for DoFinal.
func (c *Cipher) ProcessBytes(in, out []byte) (int, error) {
	if c.finished {
		return 0, ErrFinished
	}

	n := c.ready(len(c.buf) + len(in))
	if len(out) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrOutputTooShort, n, len(out))
	}

	c.buf = append(c.buf, in...)
	if n == 0 {
		return 0, nil
	}

	c.mode.CryptBlocks(out[:n], c.buf[:n])
	c.buf = append(c.buf[:0], c.buf[n:]...)
	return n, nil
}

// DoFinal consumes in together with anything buffered and returns the
// remaining output. The engine cannot be used afterwards.
func (c *Cipher) DoFinal(in []byte) ([]byte, error) {
	if c.finished {
		return nil, ErrFinished
	}
	c.finished = true

	data := append(c.buf, in...)
	c.buf = nil
	defer wipe(data)

	unit := c.mode.SegmentSize()
	padded := c.padder.Name() != padding.None

	if c.encrypting {
		if padded {
			withPad, err := c.padder.Pad(data, unit)
			if err != nil {
				return nil, err
			}
			// Pad may have reallocated; the original is wiped by the defer above
			defer wipe(withPad)
			data = withPad
		} else if !c.mode.Streaming() && len(data)%unit != 0 {
			return nil, fmt.Errorf("%w: %d bytes with segment %d", ErrDataNotBlockAligned, len(data), unit)
		}

		out := make([]byte, len(data))
		c.mode.CryptBlocks(out, data)
		return out, nil
	}

	if padded || !c.mode.Streaming() {
		if len(data)%unit != 0 || (padded && len(data) == 0) {
			return nil, fmt.Errorf("%w: last block incomplete in decryption", ErrDataNotBlockAligned)
		}
	}

	plain := make([]byte, len(data))
	c.mode.CryptBlocks(plain, data)

	out, err := c.padder.Unpad(plain, unit)
	if err != nil {
		wipe(plain)
		return nil, err
	}
	return out, nil
}

// Reset drops buffered input without touching the key schedule
func (c *Cipher) Reset() {
	wipe(c.buf)
	c.buf = nil
}

// ready returns how many of total buffered bytes may be released now
func (c *Cipher) ready(total int) int {
	unit := c.mode.SegmentSize()
	n := total - total%unit
	if !c.encrypting && c.padder.Name() != padding.None && n == total && n > 0 {
		n -= unit
	}
	return n
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
