package keyring

import (
	"errors"
	"fmt"

	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/pkg/helpers"
	"SeedCrypt/server/internal/protocol"
	"SeedCrypt/server/internal/storage"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key name already in use")
	ErrUnwrap      = errors.New("stored key cannot be unwrapped")
)

// Store defines the persistence interface
type Store interface {
	SaveKey(key *storage.SeedKey) (int64, error)
	GetKey(clientID int64, name string) (*storage.SeedKey, error)
	ListKeys(clientID int64) ([]*storage.SeedKey, error)
	DeleteKey(clientID int64, name string) error
}

// Service manages named SEED keys. Keys are generated server side and kept
// wrapped with SEED-CBC/PKCS7 under the master key; plaintext key bytes only
// live for the duration of one operation.
type Service struct {
	store    Store
	wrapper  encryption.Seed
	defaults encryption.Seed
	log      *helpers.Logger
}

// New creates a keyring. defaults supplies the mode, padding, feedback size
// and random source for new keys.
func New(store Store, masterKey []byte, defaults encryption.Seed) (*Service, error) {
	wrapper, err := encryption.Create().WithKey(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	return &Service{
		store:    store,
		wrapper:  wrapper,
		defaults: defaults,
		log:      helpers.NewLogger("Keyring"),
	}, nil
}

// CreateKey generates and stores a new key for clientID
func (s *Service) CreateKey(clientID int64, req protocol.CreateKeyRequest) (*protocol.KeyInfo, error) {
	if err := helpers.ValidateKeyName(req.Name); err != nil {
		return nil, err
	}

	cfg, err := helpers.ApplyCipherOptions(s.defaults, req.Mode, req.Padding, req.FeedbackSize)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetKey(clientID, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, req.Name)
	}

	if cfg, err = cfg.GenerateKey(); err != nil {
		return nil, err
	}
	defer cfg.Clear()
	if cfg, err = cfg.GenerateIV(); err != nil {
		return nil, err
	}

	// Reject parameter sets no transform can be built for before storing them
	check, err := cfg.CreateEncryptor()
	if err != nil {
		return nil, err
	}
	check.Close()

	key := cfg.Key()
	defer wipe(key)
	wrapped, wrapIV, err := s.wrap(key)
	if err != nil {
		return nil, err
	}

	record := &storage.SeedKey{
		ClientID:     clientID,
		Name:         req.Name,
		WrappedKey:   wrapped,
		WrapIV:       wrapIV,
		IV:           cfg.IV(),
		Mode:         string(cfg.Mode()),
		Padding:      string(cfg.Padding()),
		FeedbackSize: cfg.FeedbackSize(),
	}
	if record.ID, err = s.store.SaveKey(record); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrKeyExists, req.Name)
		}
		return nil, err
	}

	s.log.Info("Created key", "client_id", clientID, "name", req.Name, "mode", record.Mode, "padding", record.Padding)
	return keyInfo(record), nil
}

// GetKey describes one of clientID's keys
func (s *Service) GetKey(clientID int64, name string) (*protocol.KeyInfo, error) {
	record, err := s.lookup(clientID, name)
	if err != nil {
		return nil, err
	}
	return keyInfo(record), nil
}

// ListKeys describes all of clientID's keys
func (s *Service) ListKeys(clientID int64) ([]protocol.KeyInfo, error) {
	records, err := s.store.ListKeys(clientID)
	if err != nil {
		return nil, err
	}

	keys := make([]protocol.KeyInfo, 0, len(records))
	for _, r := range records {
		keys = append(keys, *keyInfo(r))
	}
	return keys, nil
}

// DeleteKey removes one of clientID's keys
func (s *Service) DeleteKey(clientID int64, name string) error {
	if _, err := s.lookup(clientID, name); err != nil {
		return err
	}
	if err := s.store.DeleteKey(clientID, name); err != nil {
		return err
	}
	s.log.Info("Deleted key", "client_id", clientID, "name", name)
	return nil
}

// Encrypt runs data through an encrypting transform of the named key
func (s *Service) Encrypt(clientID int64, name string, data, iv []byte) ([]byte, error) {
	return s.run(clientID, name, data, iv, true)
}

// Decrypt runs data through a decrypting transform of the named key
func (s *Service) Decrypt(clientID int64, name string, data, iv []byte) ([]byte, error) {
	return s.run(clientID, name, data, iv, false)
}

// OpenTransform builds a transform for the named key. A nil iv selects the
// key's stored IV. The caller must Close the transform.
func (s *Service) OpenTransform(clientID int64, name string, iv []byte, encrypting bool) (*encryption.Transform, error) {
	record, err := s.lookup(clientID, name)
	if err != nil {
		return nil, err
	}

	cfg, err := helpers.ApplyCipherOptions(s.defaults, record.Mode, record.Padding, record.FeedbackSize)
	if err != nil {
		return nil, err
	}

	key, err := s.unwrap(record)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	if iv == nil {
		iv = record.IV
	}

	if encrypting {
		return cfg.CreateEncryptorWith(key, iv)
	}
	return cfg.CreateDecryptorWith(key, iv)
}

func (s *Service) run(clientID int64, name string, data, iv []byte, encrypting bool) ([]byte, error) {
	t, err := s.OpenTransform(clientID, name, iv, encrypting)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	out, err := t.TransformFinalBlock(data)
	if err != nil {
		s.log.Debug("Transform failed", "client_id", clientID, "name", name, "encrypting", encrypting, "error", err)
		return nil, err
	}
	return out, nil
}

func (s *Service) lookup(clientID int64, name string) (*storage.SeedKey, error) {
	record, err := s.store.GetKey(clientID, name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return record, nil
}

func (s *Service) wrap(key []byte) ([]byte, []byte, error) {
	w, err := s.wrapper.GenerateIV()
	if err != nil {
		return nil, nil, err
	}

	wrapIV := w.IV()
	wrapped, err := w.EncryptCbc(key, wrapIV, encryption.PaddingPKCS7)
	if err != nil {
		return nil, nil, err
	}
	return wrapped, wrapIV, nil
}

func (s *Service) unwrap(record *storage.SeedKey) ([]byte, error) {
	key, err := s.wrapper.DecryptCbc(record.WrappedKey, record.WrapIV, encryption.PaddingPKCS7)
	if err != nil {
		s.log.Error("Unwrap failed", err, "client_id", record.ClientID, "name", record.Name)
		return nil, fmt.Errorf("%w: %s", ErrUnwrap, record.Name)
	}
	return key, nil
}

func keyInfo(r *storage.SeedKey) *protocol.KeyInfo {
	return &protocol.KeyInfo{
		Name:         r.Name,
		Mode:         r.Mode,
		Padding:      r.Padding,
		FeedbackSize: r.FeedbackSize,
		IV:           r.IV,
		CreatedAt:    r.CreatedAt,
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
