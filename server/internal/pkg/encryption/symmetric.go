package encryption

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCryptographic is the family of failures raised by the cipher itself
	// rather than by argument checking.
	ErrCryptographic = errors.New("cryptographic failure")

	ErrNullArgument            = errors.New("value cannot be null")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrUnsupportedFeedbackSize = fmt.Errorf("%w: not supported feedback size", ErrCryptographic)
	ErrInvalidLength           = errors.New("input length is not a multiple of the block size")
	ErrInvalidPadding          = fmt.Errorf("%w: padding is invalid and cannot be removed", ErrCryptographic)
	ErrTransformFinalized      = errors.New("transform already finalized")
	ErrInvalidSizeSpec         = errors.New("invalid legal size specification")
	ErrDestinationTooShort     = errors.New("destination is too short")
)

// SymmetricAlgorithm is implemented by algorithm configurations that can
// build per-message transforms.
type SymmetricAlgorithm interface {
	CreateEncryptor() (*Transform, error)
	CreateDecryptor() (*Transform, error)
	CreateEncryptorWith(key, iv []byte) (*Transform, error)
	CreateDecryptorWith(key, iv []byte) (*Transform, error)
	BlockSize() int
	KeySize() int
	Name() string
}

// CipherMode type for block cipher modes
type CipherMode string

const (
	ModeECB CipherMode = "ECB"
	ModeCBC CipherMode = "CBC"
	ModeCFB CipherMode = "CFB"
	ModeOFB CipherMode = "OFB"
	// ModeCTS is recognized but no SEED transform supports it
	ModeCTS CipherMode = "CTS"
)

// PaddingMode type for padding schemes
type PaddingMode string

const (
	PaddingNone     PaddingMode = "NONE"
	PaddingPKCS7    PaddingMode = "PKCS7"
	PaddingZeros    PaddingMode = "ZEROS"
	PaddingANSIX923 PaddingMode = "ANSIX923"
	PaddingISO10126 PaddingMode = "ISO10126"
)

// ParseCipherMode accepts a mode name in any case
func ParseCipherMode(s string) (CipherMode, error) {
	switch m := CipherMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeECB, ModeCBC, ModeCFB, ModeOFB, ModeCTS:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown cipher mode %q", ErrInvalidArgument, s)
	}
}

// ParsePaddingMode accepts a padding name in any case; "ANSI_X923" and
// "ISO_10126" spellings are also recognized.
func ParsePaddingMode(s string) (PaddingMode, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "_", "")
	switch p := PaddingMode(normalized); p {
	case PaddingNone, PaddingPKCS7, PaddingZeros, PaddingANSIX923, PaddingISO10126:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown padding mode %q", ErrInvalidArgument, s)
	}
}
