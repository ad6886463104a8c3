package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("generating secret: %v", err)
	}
	return secret
}

func TestEncryptThenMACRoundTrip(t *testing.T) {
	secret := testSecret(t)
	plaintext := []byte("position report, station alpha")

	enc, err := encryptThenMAC(secret, plaintext)
	if err != nil {
		t.Fatalf("encryptThenMAC() error = %v", err)
	}
	if len(enc) != CipherMACSize+CipherIVSize+len(plaintext) {
		t.Errorf("ciphertext length = %d, want %d", len(enc), CipherMACSize+CipherIVSize+len(plaintext))
	}

	dec, err := macThenDecrypt(secret, enc)
	if err != nil {
		t.Fatalf("macThenDecrypt() error = %v", err)
	}
	if !bytes.Equal(dec, plaintext) {
		t.Errorf("decrypted = %q, want %q", dec, plaintext)
	}
}

func TestEncryptThenMACEmptyPlaintext(t *testing.T) {
	secret := testSecret(t)

	enc, err := encryptThenMAC(secret, nil)
	if err != nil {
		t.Fatalf("encryptThenMAC(nil) error = %v", err)
	}

	dec, err := macThenDecrypt(secret, enc)
	if err != nil {
		t.Fatalf("macThenDecrypt() error = %v", err)
	}
	if len(dec) != 0 {
		t.Errorf("decrypted length = %d, want 0", len(dec))
	}
}

func TestEncryptThenMACFreshIV(t *testing.T) {
	secret := testSecret(t)
	plaintext := []byte("same plaintext twice")

	enc1, _ := encryptThenMAC(secret, plaintext)
	enc2, _ := encryptThenMAC(secret, plaintext)

	// CTR with a random IV must not repeat ciphertexts
	if bytes.Equal(enc1, enc2) {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestMACThenDecryptTamperedCiphertext(t *testing.T) {
	secret := testSecret(t)

	enc, _ := encryptThenMAC(secret, []byte("authentic"))
	enc[len(enc)-1] ^= 0xFF

	if _, err := macThenDecrypt(secret, enc); err != ErrMACMismatch {
		t.Errorf("error = %v, want %v", err, ErrMACMismatch)
	}
}

func TestMACThenDecryptWrongSecret(t *testing.T) {
	enc, _ := encryptThenMAC(testSecret(t), []byte("for someone else"))

	if _, err := macThenDecrypt(testSecret(t), enc); err != ErrMACMismatch {
		t.Errorf("error = %v, want %v", err, ErrMACMismatch)
	}
}

func TestMACThenDecryptTooShort(t *testing.T) {
	if _, err := macThenDecrypt(testSecret(t), make([]byte, CipherMACSize)); err != ErrCiphertextShort {
		t.Errorf("error = %v, want %v", err, ErrCiphertextShort)
	}
}

func TestEncryptThenMACShortKey(t *testing.T) {
	if _, err := encryptThenMAC(make([]byte, 8), []byte("data")); err != ErrInvalidKeySize {
		t.Errorf("error = %v, want %v", err, ErrInvalidKeySize)
	}
}
