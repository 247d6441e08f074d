package encryption

import (
	"errors"
	"fmt"

	"SeedCrypt/server/internal/pkg/encryption/engine"
	"SeedCrypt/server/internal/pkg/encryption/padding"
)

type transformState int

const (
	stateReady transformState = iota
	stateFinalized
	stateClosed
)

// Transform encrypts or decrypts one message. Feed block-aligned chunks
// through TransformBlock, then finish with TransformFinalBlock; a Transform
// cannot be restarted, build a new one per message.
//
// A Transform owns its engine and key copy exclusively and is not safe for
// concurrent use.
type Transform struct {
	engine         *engine.Cipher
	key            []byte
	transformation string
	encrypting     bool
	state          transformState
}

// InputBlockSize is the algorithm block size in bytes
func (t *Transform) InputBlockSize() int {
	return t.engine.BlockSize()
}

// OutputBlockSize is the algorithm block size in bytes
func (t *Transform) OutputBlockSize() int {
	return t.engine.BlockSize()
}

// CanTransformMultipleBlocks reports that TransformBlock accepts any block multiple
func (t *Transform) CanTransformMultipleBlocks() bool {
	return true
}

// CanReuseTransform is false: a finalized Transform stays finalized
func (t *Transform) CanReuseTransform() bool {
	return false
}

// Encrypting reports the direction of the transform
func (t *Transform) Encrypting() bool {
	return t.encrypting
}

// Transformation returns the engine selector, e.g. "SEED/OFB/NOPADDING"
func (t *Transform) Transformation() string {
	return t.transformation
}

// TransformBlock processes src, whose length must be a multiple of
// InputBlockSize, and writes the bytes the engine releases into dst. Output
// may lag input: a padded decryptor keeps the last block until the final call.
func (t *Transform) TransformBlock(dst, src []byte) (int, error) {
	if err := t.checkReady(); err != nil {
		return 0, err
	}
	if src == nil {
		return 0, fmt.Errorf("%w: input buffer", ErrNullArgument)
	}
	if dst == nil {
		return 0, fmt.Errorf("%w: output buffer", ErrNullArgument)
	}
	if len(src)%t.InputBlockSize() != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(src))
	}

	n, err := t.engine.ProcessBytes(src, dst)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// TransformFinalBlock consumes the remaining input, applies or removes
// padding and returns the last output. The transform is finalized even when
// this fails.
func (t *Transform) TransformFinalBlock(src []byte) ([]byte, error) {
	if err := t.checkReady(); err != nil {
		return nil, err
	}
	t.state = stateFinalized

	out, err := t.engine.DoFinal(src)
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// UpdateOutputSize is the number of bytes TransformBlock would release for n
// more input bytes
func (t *Transform) UpdateOutputSize(n int) int {
	return t.engine.UpdateOutputSize(n)
}

// Close zeroes the key copy and drops any buffered input
func (t *Transform) Close() error {
	if t.state == stateClosed {
		return nil
	}
	t.state = stateClosed
	wipe(t.key)
	t.key = nil
	t.engine.Reset()
	return nil
}

func (t *Transform) checkReady() error {
	switch t.state {
	case stateFinalized:
		return ErrTransformFinalized
	case stateClosed:
		return fmt.Errorf("%w: transform closed", ErrTransformFinalized)
	}
	return nil
}

// translate maps engine failures onto this package's error taxonomy
func translate(err error) error {
	switch {
	case errors.Is(err, padding.ErrInvalidPadding):
		return fmt.Errorf("%w (%v)", ErrInvalidPadding, err)
	case errors.Is(err, engine.ErrDataNotBlockAligned):
		return fmt.Errorf("%w (%v)", ErrInvalidLength, err)
	case errors.Is(err, engine.ErrOutputTooShort):
		return fmt.Errorf("%w (%v)", ErrDestinationTooShort, err)
	case errors.Is(err, engine.ErrFinished):
		return ErrTransformFinalized
	default:
		return fmt.Errorf("%w: %v", ErrCryptographic, err)
	}
}
