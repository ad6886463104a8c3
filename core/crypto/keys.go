// Package crypto provides station identity and report-envelope protection.
//
// Ground stations forward everything they hear to shared brokers, so each
// report is wrapped in an envelope signed with the station's Ed25519 identity
// key, and optionally sealed for a mission-control key so that only mission
// control can read it. Sealing derives an X25519 shared secret from the
// Ed25519 keys and encrypts with AES-128-CTR plus a truncated HMAC-SHA256.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalidPubKeySize  = errors.New("invalid public key size: expected 32 bytes")
	ErrInvalidPrivKeySize = errors.New("invalid private key size: expected 64 bytes")
)

// Identity is a station's Ed25519 key pair. The public key doubles as the
// station's wire identity.
type Identity struct {
	PublicKey  ed25519.PublicKey  // 32 bytes
	PrivateKey ed25519.PrivateKey // 64 bytes
}

// NewIdentity generates a fresh station identity.
func NewIdentity() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	return &Identity{PublicKey: pub, PrivateKey: priv}, nil
}

// IdentityFromPrivateKey reconstructs an Identity from a 64-byte Ed25519
// private key as persisted by a station between runs.
func IdentityFromPrivateKey(privKey []byte) (*Identity, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}
	priv := ed25519.PrivateKey(make([]byte, ed25519.PrivateKeySize))
	copy(priv, privKey)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{PublicKey: pub, PrivateKey: priv}, nil
}

// ID returns the station's identity string: the hex-encoded public key.
func (id *Identity) ID() string {
	return hex.EncodeToString(id.PublicKey)
}

// Ed25519PubKeyToX25519 converts an Ed25519 public key to its X25519
// (Curve25519) equivalent for ECDH.
func Ed25519PubKeyToX25519(edPubKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// Ed25519PrivKeyToX25519 converts an Ed25519 private key to its X25519
// equivalent per RFC 8032: SHA-512 the seed, then clamp the first 32 bytes.
func Ed25519PrivKeyToX25519(edPrivKey ed25519.PrivateKey) ([]byte, error) {
	if len(edPrivKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}

	seed := edPrivKey.Seed()
	h := sha512.Sum512(seed)

	// Clamp: clear lowest 3 bits, clear bit 255, set bit 254
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	return h[:32], nil
}

// ComputeSharedSecret derives a 32-byte shared secret from a local Ed25519
// private key and a remote Ed25519 public key using X25519 ECDH. Both sides
// of an exchange derive the same secret.
func ComputeSharedSecret(localPrivKey ed25519.PrivateKey, remotePubKey []byte) ([]byte, error) {
	if len(remotePubKey) != ed25519.PublicKeySize {
		return nil, ErrInvalidPubKeySize
	}

	x25519Priv, err := Ed25519PrivKeyToX25519(localPrivKey)
	if err != nil {
		return nil, fmt.Errorf("converting private key: %w", err)
	}

	x25519Pub, err := Ed25519PubKeyToX25519(remotePubKey)
	if err != nil {
		return nil, fmt.Errorf("converting public key: %w", err)
	}

	secret, err := curve25519.X25519(x25519Priv, x25519Pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}

	return secret, nil
}
