package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// --- Key Management ---

// PrivateKey wraps an ed25519 signing key. The public half doubles as the
// account address.
type PrivateKey struct {
	key ed25519.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes accepts either a 32-byte seed or a 64-byte expanded key.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return &PrivateKey{key: ed25519.NewKeyFromSeed(b)}, nil
	case ed25519.PrivateKeySize:
		key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(key, b)
		return &PrivateKey{key: key}, nil
	default:
		return nil, fmt.Errorf("crypto: invalid private key length %d", len(b))
	}
}

// PrivateKeyFromBase58 decodes the wallet export format.
func PrivateKeyFromBase58(s string) (*PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid base58 key: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}

// Bytes returns the 64-byte expanded private key.
func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

func (k *PrivateKey) Base58() string { return base58.Encode(k.key) }

func (k *PrivateKey) Address() Address {
	var addr Address
	copy(addr[:], k.key.Public().(ed25519.PublicKey))
	return addr
}

func (k *PrivateKey) Sign(msg []byte) []byte {
	return ed25519.Sign(k.key, msg)
}

// Verify checks an ed25519 signature against the signer's address.
func Verify(signer Address, msg, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return errors.New("crypto: invalid signature length")
	}
	if !ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig) {
		return errors.New("crypto: signature mismatch")
	}
	return nil
}
