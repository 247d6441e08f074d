package encryption

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// SeedName and SeedFullName are the identity strings CreateByName accepts
	SeedName     = "Seed"
	SeedFullName = "System.Security.Cryptography.Seed"

	// seedEngineAlgorithm selects the primitive in transformation strings
	seedEngineAlgorithm = "SEED"
)

var (
	seedLegalBlockSizes = []KeySizes{{MinSize: 128, MaxSize: 128, SkipSize: 0}}
	seedLegalKeySizes   = []KeySizes{{MinSize: 128, MaxSize: 128, SkipSize: 64}}
)

// algorithmsByName maps every accepted identity string to its constructor
var algorithmsByName = map[string]func() Seed{
	SeedName:     Create,
	SeedFullName: Create,
}

// Seed is the KISA SEED algorithm configuration: legal size tables, operating
// parameters and optional key material.
//
// Seed is a value. The With* and Generate* methods return a modified copy and
// never touch the receiver, so a Seed can be shared between goroutines as long
// as nobody calls Clear on a shared copy.
type Seed struct {
	blockSize    int
	keySize      int
	feedbackSize int
	mode         CipherMode
	padding      PaddingMode
	key          []byte
	iv           []byte
	rng          Randomness

	// validateKeyAgainstBlockSizes keeps the historical behavior of checking
	// key lengths against the block-size table when building transforms.
	validateKeyAgainstBlockSizes bool

	// segmentedFeedback makes CFB honor an 8-bit feedback size (CFB8).
	// Off, CFB always feeds back a full block.
	segmentedFeedback bool
}

// Create returns a SEED configuration with default parameters:
// 128-bit blocks and keys, 8-bit feedback, CBC mode and PKCS#7 padding.
func Create() Seed {
	return Seed{
		blockSize:                    128,
		keySize:                      128,
		feedbackSize:                 8,
		mode:                         ModeCBC,
		padding:                      PaddingPKCS7,
		rng:                          NewSecureRandom(nil),
		validateKeyAgainstBlockSizes: true,
	}
}

// CreateByName is Create for one of the accepted identity strings. Names are
// matched exactly, case included.
func CreateByName(algorithmName string) (Seed, error) {
	ctor, ok := algorithmsByName[algorithmName]
	if !ok {
		return Seed{}, fmt.Errorf("%w: unknown algorithm name %q (accepted: %s)",
			ErrInvalidArgument, algorithmName, strings.Join(AlgorithmNames(), ", "))
	}
	return ctor(), nil
}

// AlgorithmNames lists the identity strings CreateByName accepts
func AlgorithmNames() []string {
	names := make([]string, 0, len(algorithmsByName))
	for name := range algorithmsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Seed) Name() string      { return SeedName }
func (s Seed) BlockSize() int    { return s.blockSize }
func (s Seed) KeySize() int      { return s.keySize }
func (s Seed) FeedbackSize() int { return s.feedbackSize }

func (s Seed) Mode() CipherMode     { return s.mode }
func (s Seed) Padding() PaddingMode { return s.padding }

// SegmentedFeedback reports whether CFB transforms use the configured
// feedback size instead of full-block feedback.
func (s Seed) SegmentedFeedback() bool { return s.segmentedFeedback }

// ValidatesKeyAgainstBlockSizes reports which table transform construction
// checks key lengths against.
func (s Seed) ValidatesKeyAgainstBlockSizes() bool {
	return s.validateKeyAgainstBlockSizes
}

// LegalBlockSizes returns a copy of the block-size table
func (s Seed) LegalBlockSizes() []KeySizes {
	return append([]KeySizes(nil), seedLegalBlockSizes...)
}

// LegalKeySizes returns a copy of the key-size table
func (s Seed) LegalKeySizes() []KeySizes {
	return append([]KeySizes(nil), seedLegalKeySizes...)
}

// Key returns a copy of the configured key, or nil when none is set
func (s Seed) Key() []byte {
	return cloneBytes(s.key)
}

// IV returns a copy of the configured IV, or nil when none is set
func (s Seed) IV() []byte {
	return cloneBytes(s.iv)
}

// WithKey sets the key; its length must be legal per the key-size table,
// and the key size follows the key.
func (s Seed) WithKey(key []byte) (Seed, error) {
	if key == nil {
		return s, fmt.Errorf("%w: key", ErrNullArgument)
	}
	bits := len(key) * bitsPerByte
	if !IsLegalSize(bits, seedLegalKeySizes...) {
		return s, fmt.Errorf("%w: invalid key size %d bits", ErrInvalidArgument, bits)
	}

	s.key = cloneBytes(key)
	s.keySize = bits
	return s, nil
}

// WithIV sets the IV, which must be exactly one block long
func (s Seed) WithIV(iv []byte) (Seed, error) {
	if iv == nil {
		return s, fmt.Errorf("%w: iv", ErrNullArgument)
	}
	if len(iv)*bitsPerByte != s.blockSize {
		return s, fmt.Errorf("%w: invalid iv size %d bytes", ErrInvalidArgument, len(iv))
	}

	s.iv = cloneBytes(iv)
	return s, nil
}

// WithKeySize changes the key size. A key of a different size is dropped.
func (s Seed) WithKeySize(bits int) (Seed, error) {
	if !IsLegalSize(bits, seedLegalKeySizes...) {
		return s, fmt.Errorf("%w: invalid key size %d bits", ErrInvalidArgument, bits)
	}

	if s.key != nil && len(s.key)*bitsPerByte != bits {
		s.key = nil
	}
	s.keySize = bits
	return s, nil
}

// WithMode selects the mode of operation. CTS is rejected.
func (s Seed) WithMode(mode CipherMode) (Seed, error) {
	switch mode {
	case ModeECB, ModeCBC, ModeCFB, ModeOFB:
		s.mode = mode
		return s, nil
	default:
		return s, fmt.Errorf("%w: cipher mode %q is not supported by %s", ErrInvalidArgument, mode, SeedName)
	}
}

// WithPadding selects the padding mode. Unknown values are accepted here and
// fall back to PKCS#7 when a transform is built.
func (s Seed) WithPadding(padding PaddingMode) Seed {
	s.padding = padding
	return s
}

// WithFeedbackSize sets the CFB feedback size in bits. Any whole number of
// bytes up to the block size is stored; CFB transforms accept only 8 and 128.
func (s Seed) WithFeedbackSize(bits int) (Seed, error) {
	if bits <= 0 || bits > s.blockSize || bits%bitsPerByte != 0 {
		return s, fmt.Errorf("%w: invalid feedback size %d bits", ErrCryptographic, bits)
	}
	s.feedbackSize = bits
	return s, nil
}

// WithKeyValidation chooses the table transform construction validates key
// lengths against: the block-size table (true, the default) or the key-size
// table (false).
func (s Seed) WithKeyValidation(againstBlockSizes bool) Seed {
	s.validateKeyAgainstBlockSizes = againstBlockSizes
	return s
}

// WithSegmentedFeedback switches CFB between full-block feedback (false, the
// default) and feedback of FeedbackSize bits. With it on, a feedback size of
// 8 selects CFB8 and the padding unit shrinks to one byte.
func (s Seed) WithSegmentedFeedback(enabled bool) Seed {
	s.segmentedFeedback = enabled
	return s
}

// WithRandomness replaces the random source used by GenerateKey and GenerateIV
func (s Seed) WithRandomness(rng Randomness) Seed {
	s.rng = rng
	return s
}

// GenerateKey returns a copy holding a fresh random key of KeySize bits
func (s Seed) GenerateKey() (Seed, error) {
	key, err := s.randomness().GenerateKey(s.keySize)
	if err != nil {
		return s, fmt.Errorf("generate key: %w", err)
	}
	s.key = key
	return s, nil
}

// GenerateIV returns a copy holding a fresh random IV of one block
func (s Seed) GenerateIV() (Seed, error) {
	iv, err := s.randomness().GetBytes(s.blockSize / bitsPerByte)
	if err != nil {
		return s, fmt.Errorf("generate iv: %w", err)
	}
	s.iv = iv
	return s, nil
}

// Clear zeroes the key and IV held by this copy
func (s *Seed) Clear() {
	wipe(s.key)
	wipe(s.iv)
	s.key = nil
	s.iv = nil
}

// CreateEncryptor builds an encrypting transform from the configured key and IV
func (s Seed) CreateEncryptor() (*Transform, error) {
	return s.CreateEncryptorWith(s.key, s.iv)
}

// CreateDecryptor builds a decrypting transform from the configured key and IV
func (s Seed) CreateDecryptor() (*Transform, error) {
	return s.CreateDecryptorWith(s.key, s.iv)
}

// CreateEncryptorWith builds an encrypting transform from explicit key material
func (s Seed) CreateEncryptorWith(key, iv []byte) (*Transform, error) {
	return s.NewTransform(s.request(key, iv, true, s.mode, s.padding, s.feedbackSize))
}

// CreateDecryptorWith builds a decrypting transform from explicit key material
func (s Seed) CreateDecryptorWith(key, iv []byte) (*Transform, error) {
	return s.NewTransform(s.request(key, iv, false, s.mode, s.padding, s.feedbackSize))
}

func (s Seed) request(key, iv []byte, encrypting bool, mode CipherMode, padding PaddingMode, feedbackSize int) TransformRequest {
	return TransformRequest{
		Key:          key,
		IV:           iv,
		Mode:         mode,
		Padding:      padding,
		FeedbackSize: feedbackSize,
		Encrypting:   encrypting,
	}
}

func (s Seed) randomness() Randomness {
	if s.rng == nil {
		return NewSecureRandom(nil)
	}
	return s.rng
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
