package helpers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"

	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/storage"
)

var (
	ErrInvalidKeyName  = errors.New("invalid key name")
	ErrInvalidEncoding = errors.New("invalid base64 field")
	ErrClientNotFound  = errors.New("client not found")
)

var keyNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ClientLookup is the storage subset needed to resolve clients
type ClientLookup interface {
	GetClientByID(clientID int64) (*storage.Client, error)
}

// ValidateClientExists checks that a client ID refers to a registered client
func ValidateClientExists(db ClientLookup, clientID int64) (*storage.Client, error) {
	if clientID <= 0 {
		return nil, errors.New("invalid client ID")
	}

	client, err := db.GetClientByID(clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	return client, nil
}

// ValidateKeyName accepts 1-64 characters of letters, digits, dot, dash and underscore
func ValidateKeyName(name string) error {
	if !keyNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	return nil
}

// DecodeBase64 decodes a standard base64 request field. An empty value
// decodes to nil so optional fields stay absent.
func DecodeBase64(field, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, field)
	}
	return b, nil
}

// ApplyCipherOptions overlays request options on base. Empty strings and a
// zero feedback size keep the base value.
func ApplyCipherOptions(base encryption.Seed, mode, padding string, feedbackBits int) (encryption.Seed, error) {
	s := base

	if mode != "" {
		m, err := encryption.ParseCipherMode(mode)
		if err != nil {
			return base, err
		}
		if s, err = s.WithMode(m); err != nil {
			return base, err
		}
	}

	if padding != "" {
		p, err := encryption.ParsePaddingMode(padding)
		if err != nil {
			return base, err
		}
		s = s.WithPadding(p)
	}

	if feedbackBits != 0 {
		var err error
		if s, err = s.WithFeedbackSize(feedbackBits); err != nil {
			return base, err
		}
	}

	return s, nil
}
