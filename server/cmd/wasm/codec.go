package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"SeedCrypt/server/internal/pkg/crypto"
	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/pkg/helpers"
)

// streamKeyInfo must match the gateway's HKDF info string
const (
	streamGroupBits = 2048
	streamKeyInfo   = "seedcrypt stream key"
)

var errUnknownSession = errors.New("unknown agreement session")

// cipherCall is one browser-side SEED operation; byte fields are hex
type cipherCall struct {
	KeyHex       string
	IVHex        string
	DataHex      string
	Mode         string
	Padding      string
	FeedbackSize int
	Encrypting   bool
}

func (c cipherCall) run() (string, error) {
	key, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: key", helpers.ErrInvalidEncoding)
	}
	data, err := hex.DecodeString(c.DataHex)
	if err != nil {
		return "", fmt.Errorf("%w: data", helpers.ErrInvalidEncoding)
	}
	var iv []byte
	if c.IVHex != "" {
		if iv, err = hex.DecodeString(c.IVHex); err != nil {
			return "", fmt.Errorf("%w: iv", helpers.ErrInvalidEncoding)
		}
	}

	cfg, err := helpers.ApplyCipherOptions(encryption.Create(), c.Mode, c.Padding, c.FeedbackSize)
	if err != nil {
		return "", err
	}

	out, err := cfg.Run(encryption.TransformRequest{
		Key:          key,
		IV:           iv,
		Mode:         cfg.Mode(),
		Padding:      cfg.Padding(),
		FeedbackSize: cfg.FeedbackSize(),
		Encrypting:   c.Encrypting,
	}, data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(out), nil
}

// generateKeyAndIV returns a fresh hex key and IV
func generateKeyAndIV() (string, string, error) {
	s, err := encryption.Create().GenerateKey()
	if err != nil {
		return "", "", err
	}
	if s, err = s.GenerateIV(); err != nil {
		return "", "", err
	}
	defer s.Clear()
	return hex.EncodeToString(s.Key()), hex.EncodeToString(s.IV()), nil
}

// agreements holds the client half of pending stream key agreements
type agreements struct {
	mu       sync.Mutex
	next     int
	sessions map[int]*crypto.DiffieHellman
}

func newAgreements() *agreements {
	return &agreements{sessions: make(map[int]*crypto.DiffieHellman)}
}

// start creates a session and returns its ID and hex public key, which the
// client sends as peer_key.
func (a *agreements) start() (int, string, error) {
	dh, err := crypto.NewDiffieHellman(streamGroupBits)
	if err != nil {
		return 0, "", err
	}
	if err := dh.GeneratePrivateKey(); err != nil {
		return 0, "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.sessions[a.next] = dh
	return a.next, hex.EncodeToString(dh.GetPublicKey()), nil
}

// finish consumes the session and derives the stream key from the server's
// public key.
func (a *agreements) finish(id int, serverKeyHex string) (string, error) {
	a.mu.Lock()
	dh, ok := a.sessions[id]
	delete(a.sessions, id)
	a.mu.Unlock()
	if !ok {
		return "", errUnknownSession
	}

	serverKey, err := hex.DecodeString(serverKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: server key", helpers.ErrInvalidEncoding)
	}
	secret, err := dh.ComputeSharedSecret(serverKey)
	if err != nil {
		return "", err
	}
	key, err := crypto.DeriveKey(secret, nil, []byte(streamKeyInfo), encryption.SeedKeySize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
