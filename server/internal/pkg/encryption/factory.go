package encryption

import (
	"fmt"
	"math"

	"SeedCrypt/server/internal/pkg/encryption/engine"
	"SeedCrypt/server/internal/pkg/encryption/padding"
)

// TransformRequest is everything needed to build one transform. It is
// assembled per call so that building a transform never mutates a Seed.
type TransformRequest struct {
	Key          []byte
	IV           []byte // nil selects an all-zero register for chaining modes
	Mode         CipherMode
	Padding      PaddingMode
	FeedbackSize int // bits, CFB only
	Encrypting   bool
}

// NewTransform validates req against this configuration and builds the
// transform. Checks run in a fixed order and nothing touches the engine
// until all of them pass:
//  1. the key is present
//  2. the key length is legal (block-size table unless WithKeyValidation(false))
//  3. a present IV is exactly one block
//  4. CFB feedback is 8 or 128 bits
//
// CFB runs with full-block feedback unless WithSegmentedFeedback(true) is set.
func (s Seed) NewTransform(req TransformRequest) (*Transform, error) {
	if s.blockSize == 0 {
		return nil, fmt.Errorf("%w: configuration not initialized, use Create", ErrInvalidArgument)
	}

	if req.Key == nil {
		return nil, fmt.Errorf("%w: key", ErrNullArgument)
	}

	keyBits := int64(len(req.Key)) * bitsPerByte
	table := seedLegalKeySizes
	if s.validateKeyAgainstBlockSizes {
		table = seedLegalBlockSizes
	}
	if keyBits > math.MaxInt32 || !IsLegalSize(int(keyBits), table...) {
		return nil, fmt.Errorf("%w: invalid key size %d bits", ErrInvalidArgument, keyBits)
	}

	if req.IV != nil {
		ivBits := int64(len(req.IV)) * bitsPerByte
		if ivBits != int64(s.blockSize) {
			return nil, fmt.Errorf("%w: invalid iv size %d bits", ErrInvalidArgument, ivBits)
		}
	}

	if req.Mode == ModeCFB {
		if err := validateCFBFeedbackSize(req.FeedbackSize); err != nil {
			return nil, err
		}
	}

	transformation, err := transformationFor(req.Mode, req.Padding, req.FeedbackSize, s.segmentedFeedback)
	if err != nil {
		return nil, err
	}

	iv := req.IV
	if req.Mode == ModeECB {
		iv = nil
	}

	key := cloneBytes(req.Key)
	eng, err := engine.New(transformation, key, iv, req.Encrypting)
	if err != nil {
		wipe(key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return &Transform{
		engine:         eng,
		key:            key,
		transformation: transformation,
		encrypting:     req.Encrypting,
	}, nil
}

func validateCFBFeedbackSize(feedback int) error {
	if feedback != 8 && feedback != 128 {
		return fmt.Errorf("%w: %d bits", ErrUnsupportedFeedbackSize, feedback)
	}
	return nil
}

// transformationFor renders the engine selector, e.g. "SEED/CBC/PKCS7PADDING".
// CFB is "SEED/CFB/..." (full block) unless segmented feedback asks for CFB8.
func transformationFor(mode CipherMode, paddingMode PaddingMode, feedbackSize int, segmented bool) (string, error) {
	var modeName string
	switch mode {
	case ModeECB, ModeCBC, ModeOFB:
		modeName = string(mode)
	case ModeCFB:
		modeName = string(mode)
		if segmented && feedbackSize == 8 {
			modeName += "8"
		}
	default:
		return "", fmt.Errorf("%w: cipher mode %q is not supported by %s", ErrInvalidArgument, mode, SeedName)
	}

	return seedEngineAlgorithm + "/" + modeName + "/" + paddingIdentifier(paddingMode), nil
}

// paddingIdentifier maps a padding mode onto the engine's name for it.
// Unrecognized values fall back to PKCS#7.
func paddingIdentifier(p PaddingMode) string {
	switch p {
	case PaddingNone:
		return padding.None
	case PaddingPKCS7:
		return padding.PKCS7
	case PaddingZeros:
		return padding.Zeros
	case PaddingANSIX923:
		return padding.ANSIX923
	case PaddingISO10126:
		return padding.ISO10126
	default:
		return padding.PKCS7
	}
}
