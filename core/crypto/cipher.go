package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	// CipherKeySize is the AES-128 key size.
	CipherKeySize = 16
	// CipherIVSize is the AES-CTR initialization vector size.
	CipherIVSize = 16
	// CipherMACSize is the truncated HMAC-SHA256 size (2 bytes).
	CipherMACSize = 2
	// SecretSize is the full shared secret / HMAC key size (32 bytes).
	SecretSize = 32
)

var (
	ErrInvalidKeySize  = errors.New("invalid key size: must be at least 16 bytes")
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrMACMismatch     = errors.New("MAC verification failed")
)

// encryptThenMAC encrypts plaintext with AES-128-CTR under a fresh random IV,
// then computes an HMAC-SHA256 over IV and ciphertext, truncated to 2 bytes.
// Returns [MAC(2) || IV(16) || ciphertext].
//
// Key usage:
//   - AES-128 cipher key: first 16 bytes of secret
//   - HMAC key: full secret, zero-padded to 32 bytes
func encryptThenMAC(secret, plaintext []byte) ([]byte, error) {
	if len(secret) < CipherKeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(secret[:CipherKeySize])
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	out := make([]byte, CipherMACSize+CipherIVSize+len(plaintext))
	iv := out[CipherMACSize : CipherMACSize+CipherIVSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	cipher.NewCTR(block, iv).XORKeyStream(out[CipherMACSize+CipherIVSize:], plaintext)

	mac := hmac.New(sha256.New, hmacKey(secret))
	mac.Write(out[CipherMACSize:])
	macSum := mac.Sum(nil)
	copy(out[:CipherMACSize], macSum[:CipherMACSize])

	return out, nil
}

// macThenDecrypt verifies the truncated HMAC-SHA256 and decrypts AES-128-CTR
// ciphertext. Expects input as [MAC(2) || IV(16) || ciphertext].
func macThenDecrypt(secret, data []byte) ([]byte, error) {
	if len(secret) < CipherKeySize {
		return nil, ErrInvalidKeySize
	}
	if len(data) < CipherMACSize+CipherIVSize {
		return nil, ErrCiphertextShort
	}

	receivedMAC := data[:CipherMACSize]
	body := data[CipherMACSize:]

	mac := hmac.New(sha256.New, hmacKey(secret))
	mac.Write(body)
	computedMAC := mac.Sum(nil)

	if !hmac.Equal(receivedMAC, computedMAC[:CipherMACSize]) {
		return nil, ErrMACMismatch
	}

	block, err := aes.NewCipher(secret[:CipherKeySize])
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := body[:CipherIVSize]
	ciphertext := body[CipherIVSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}

// hmacKey zero-pads the secret to the full HMAC key size.
func hmacKey(secret []byte) []byte {
	key := make([]byte, SecretSize)
	copy(key, secret)
	return key
}
