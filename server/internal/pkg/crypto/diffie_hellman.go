package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrUnknownGroup      = errors.New("unknown DH group")
	ErrNoPrivateKey      = errors.New("private key not generated")
	ErrInvalidPublicKey  = errors.New("invalid peer public key")
	ErrInvalidKeyRequest = errors.New("invalid key derivation request")
)

// StandardGroups holds the MODP primes from RFC 2409 (1024) and RFC 3526 (2048),
// both with generator 2.
var StandardGroups = map[int]string{
	1024: `FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
		29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
		EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
		E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
		EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE65381
		FFFFFFFF FFFFFFFF`,
	2048: `FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
		29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
		EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
		E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
		EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D
		C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F
		83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D
		670C354E 4ABC9804 F1746C08 CA18217C 32905E46 2E36CE3B
		E39E772C 180E8603 9B2783A2 EC07A28F B5C55DF0 6F4C52C9
		DE2BCBF6 95581718 3995497C EA956AE5 15D22618 98FA0510
		15728E5A 8AACAA68 FFFFFFFF FFFFFFFF`,
}

// DiffieHellman is one side of a finite-field Diffie-Hellman exchange
type DiffieHellman struct {
	p         *big.Int
	g         *big.Int
	a         *big.Int
	publicKey *big.Int
	rand      io.Reader
}

// NewDiffieHellman creates a DH instance over the standard group of primeBits bits
func NewDiffieHellman(primeBits int) (*DiffieHellman, error) {
	hexPrime, ok := StandardGroups[primeBits]
	if !ok {
		return nil, fmt.Errorf("%w: %d bits", ErrUnknownGroup, primeBits)
	}

	p, ok := new(big.Int).SetString(strings.Join(strings.Fields(hexPrime), ""), 16)
	if !ok {
		return nil, fmt.Errorf("%w: malformed prime for %d bits", ErrUnknownGroup, primeBits)
	}

	return &DiffieHellman{
		p:    p,
		g:    big.NewInt(2),
		rand: rand.Reader,
	}, nil
}

// GeneratePrivateKey picks a private exponent in [2, p-2] and computes the public key
func (dh *DiffieHellman) GeneratePrivateKey() error {
	maxPrivateKey := new(big.Int).Sub(dh.p, big.NewInt(3))

	a, err := rand.Int(dh.rand, maxPrivateKey)
	if err != nil {
		return err
	}
	a.Add(a, big.NewInt(2))

	dh.a = a
	dh.publicKey = new(big.Int).Exp(dh.g, dh.a, dh.p)
	return nil
}

// GetPublicKey returns the public key as a big-endian byte slice
func (dh *DiffieHellman) GetPublicKey() []byte {
	if dh.publicKey == nil {
		return nil
	}
	return dh.publicKey.Bytes()
}

// GetPrime returns the prime modulus as a byte slice
func (dh *DiffieHellman) GetPrime() []byte {
	return dh.p.Bytes()
}

// GetGenerator returns the generator as a byte slice
func (dh *DiffieHellman) GetGenerator() []byte {
	return dh.g.Bytes()
}

// ComputeSharedSecret computes (peer^a) mod p. Peer keys outside [2, p-2]
// are rejected to rule out small-subgroup values.
func (dh *DiffieHellman) ComputeSharedSecret(otherPublicKeyBytes []byte) ([]byte, error) {
	if dh.a == nil {
		return nil, ErrNoPrivateKey
	}

	y := new(big.Int).SetBytes(otherPublicKeyBytes)
	upper := new(big.Int).Sub(dh.p, big.NewInt(1))
	if y.Cmp(big.NewInt(1)) <= 0 || y.Cmp(upper) >= 0 {
		return nil, ErrInvalidPublicKey
	}

	secret := new(big.Int).Exp(y, dh.a, dh.p)
	return secret.FillBytes(make([]byte, (dh.p.BitLen()+7)/8)), nil
}

// DeriveKey expands a shared secret into size bytes of key material with
// HKDF-SHA256. Both sides must pass the same salt and info.
func DeriveKey(sharedSecret, salt, info []byte, size int) ([]byte, error) {
	if len(sharedSecret) == 0 || size <= 0 {
		return nil, fmt.Errorf("%w: secret %d bytes, size %d", ErrInvalidKeyRequest, len(sharedSecret), size)
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, salt, info), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// KeyAgreement runs both sides of an exchange in-process
type KeyAgreement struct {
	PartyA *DiffieHellman
	PartyB *DiffieHellman
}

// NewKeyAgreement creates two parties over the same group
func NewKeyAgreement(primeBits int) (*KeyAgreement, error) {
	partyA, err := NewDiffieHellman(primeBits)
	if err != nil {
		return nil, err
	}

	partyB, err := NewDiffieHellman(primeBits)
	if err != nil {
		return nil, err
	}

	return &KeyAgreement{
		PartyA: partyA,
		PartyB: partyB,
	}, nil
}

// PerformKeyExchange generates both private keys and returns each side's shared secret
func (ka *KeyAgreement) PerformKeyExchange() ([]byte, []byte, error) {
	if err := ka.PartyA.GeneratePrivateKey(); err != nil {
		return nil, nil, err
	}
	if err := ka.PartyB.GeneratePrivateKey(); err != nil {
		return nil, nil, err
	}

	secretA, err := ka.PartyA.ComputeSharedSecret(ka.PartyB.GetPublicKey())
	if err != nil {
		return nil, nil, err
	}

	secretB, err := ka.PartyB.ComputeSharedSecret(ka.PartyA.GetPublicKey())
	if err != nil {
		return nil, nil, err
	}

	return secretA, secretB, nil
}
