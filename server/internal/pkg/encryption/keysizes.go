package encryption

import "fmt"

// KeySizes describes a set of legal sizes in bits. A zero SkipSize admits
// exactly MinSize; otherwise every MinSize + k*SkipSize up to MaxSize is legal.
type KeySizes struct {
	MinSize  int
	MaxSize  int
	SkipSize int
}

// NewKeySizes returns a validated size specification
func NewKeySizes(minSize, maxSize, skipSize int) (KeySizes, error) {
	k := KeySizes{MinSize: minSize, MaxSize: maxSize, SkipSize: skipSize}
	if err := k.Validate(); err != nil {
		return KeySizes{}, err
	}
	return k, nil
}

// Validate rejects specifications that cannot describe any size sensibly:
// a non-positive minimum, a negative step, or a stepped range whose
// maximum lies below its minimum.
func (k KeySizes) Validate() error {
	switch {
	case k.MinSize <= 0:
		return fmt.Errorf("%w: minimum size %d must be positive", ErrInvalidSizeSpec, k.MinSize)
	case k.SkipSize < 0:
		return fmt.Errorf("%w: negative step %d", ErrInvalidSizeSpec, k.SkipSize)
	case k.SkipSize > 0 && k.MaxSize < k.MinSize:
		return fmt.Errorf("%w: maximum %d below minimum %d", ErrInvalidSizeSpec, k.MaxSize, k.MinSize)
	}
	return nil
}

func (k KeySizes) String() string {
	return fmt.Sprintf("{min: %d, max: %d, step: %d}", k.MinSize, k.MaxSize, k.SkipSize)
}

// matches reports legality against one spec and whether the match came
// from an exact (zero-step) spec. Invalid specs match nothing.
func (k KeySizes) matches(size int) (bool, bool) {
	if size <= 0 || k.Validate() != nil {
		return false, false
	}

	if k.SkipSize == 0 {
		if k.MinSize == size {
			return true, true
		}
		return false, false
	}

	if size >= k.MinSize && size <= k.MaxSize && (size-k.MinSize)%k.SkipSize == 0 {
		return true, false
	}
	return false, false
}

// IsLegalSize reports whether size matches at least one of legalSizes
func IsLegalSize(size int, legalSizes ...KeySizes) bool {
	ok, _ := IsLegalSizeExact(size, legalSizes...)
	return ok
}

// IsLegalSizeExact is IsLegalSize that also reports whether the first
// matching spec was a zero-step (single fixed size) spec.
func IsLegalSizeExact(size int, legalSizes ...KeySizes) (legal bool, zeroSkip bool) {
	for _, k := range legalSizes {
		if ok, exact := k.matches(size); ok {
			return true, exact
		}
	}
	return false, false
}
