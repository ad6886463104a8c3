package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// EnvelopeVersion is the current report envelope wire version.
	EnvelopeVersion = 1

	// FlagSealed marks an envelope encrypted for a mission-control key.
	FlagSealed = 0x01

	// envelopeHeaderSize is version(1) + flags(1) + stationKey(32) +
	// timestamp(4) + rssi(2) + snr(2) + frameLen(2).
	envelopeHeaderSize = 44

	// sealedHeaderSize is version(1) + flags(1) + ephemeralKey(32).
	sealedHeaderSize = 34
)

var (
	ErrEnvelopeShort     = errors.New("envelope too short")
	ErrEnvelopeVersion   = errors.New("unsupported envelope version")
	ErrEnvelopeLength    = errors.New("envelope length does not match declared frame")
	ErrEnvelopeSealed    = errors.New("envelope is sealed, open it first")
	ErrEnvelopeNotSealed = errors.New("envelope is not sealed")
	ErrBadSignature      = errors.New("envelope signature verification failed")
	ErrFrameTooLarge     = errors.New("frame too large for envelope")
)

// Report is one received frame as forwarded by a ground station, together
// with the reception conditions mission control needs to judge it.
type Report struct {
	StationKey [32]byte // reporting station's Ed25519 public key
	Timestamp  uint32   // unix seconds at reception
	RSSI       int16    // dBm
	SNR        float32  // dB, quarter-dB wire resolution
	Frame      []byte   // raw link-layer frame bytes
}

// Sign encodes a report and signs it with the station identity.
//
// Wire layout: version(1) || flags(1) || stationKey(32) || timestamp(4 BE) ||
// rssi(2 BE) || snr quarter-dB(2 BE) || frameLen(2 BE) || frame || sig(64).
// The signature covers everything before it. The report's StationKey field
// is ignored; the identity's public key is used.
func Sign(id *Identity, r *Report) ([]byte, error) {
	if len(r.Frame) > 0xFFFF {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, envelopeHeaderSize+len(r.Frame), envelopeHeaderSize+len(r.Frame)+ed25519.SignatureSize)
	buf[0] = EnvelopeVersion
	buf[1] = 0
	copy(buf[2:34], id.PublicKey)
	binary.BigEndian.PutUint32(buf[34:38], r.Timestamp)
	binary.BigEndian.PutUint16(buf[38:40], uint16(r.RSSI))
	binary.BigEndian.PutUint16(buf[40:42], uint16(int16(r.SNR*4)))
	binary.BigEndian.PutUint16(buf[42:44], uint16(len(r.Frame)))
	copy(buf[envelopeHeaderSize:], r.Frame)

	sig := ed25519.Sign(id.PrivateKey, buf)
	return append(buf, sig...), nil
}

// Verify checks a signed envelope and returns the report it carries. Sealed
// envelopes must be opened with Open before verification.
func Verify(data []byte) (*Report, error) {
	if len(data) < envelopeHeaderSize+ed25519.SignatureSize {
		return nil, ErrEnvelopeShort
	}
	if data[0] != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrEnvelopeVersion, data[0])
	}
	if data[1]&FlagSealed != 0 {
		return nil, ErrEnvelopeSealed
	}

	frameLen := int(binary.BigEndian.Uint16(data[42:44]))
	signedLen := envelopeHeaderSize + frameLen
	if len(data) != signedLen+ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: declared %d frame bytes in %d total",
			ErrEnvelopeLength, frameLen, len(data))
	}

	var r Report
	copy(r.StationKey[:], data[2:34])
	r.Timestamp = binary.BigEndian.Uint32(data[34:38])
	r.RSSI = int16(binary.BigEndian.Uint16(data[38:40]))
	r.SNR = float32(int16(binary.BigEndian.Uint16(data[40:42]))) / 4
	r.Frame = append([]byte(nil), data[envelopeHeaderSize:signedLen]...)

	if !ed25519.Verify(r.StationKey[:], data[:signedLen], data[signedLen:]) {
		return nil, ErrBadSignature
	}
	return &r, nil
}

// Seal encrypts a signed envelope for a mission-control public key. An
// ephemeral key pair is generated per envelope; its public half rides along
// so the recipient can derive the same shared secret.
//
// Wire layout: version(1) || flags(1) || ephemeralKey(32) || MAC(2) ||
// IV(16) || ciphertext.
func Seal(signed []byte, recipientPubKey []byte) ([]byte, error) {
	eph, err := NewIdentity()
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}

	secret, err := ComputeSharedSecret(eph.PrivateKey, recipientPubKey)
	if err != nil {
		return nil, fmt.Errorf("computing shared secret: %w", err)
	}

	enc, err := encryptThenMAC(secret, signed)
	if err != nil {
		return nil, err
	}

	out := make([]byte, sealedHeaderSize+len(enc))
	out[0] = EnvelopeVersion
	out[1] = FlagSealed
	copy(out[2:sealedHeaderSize], eph.PublicKey)
	copy(out[sealedHeaderSize:], enc)
	return out, nil
}

// Open decrypts a sealed envelope with the recipient's identity and returns
// the signed envelope inside, ready for Verify.
func Open(data []byte, id *Identity) ([]byte, error) {
	if len(data) < sealedHeaderSize+CipherMACSize+CipherIVSize {
		return nil, ErrEnvelopeShort
	}
	if data[0] != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrEnvelopeVersion, data[0])
	}
	if data[1]&FlagSealed == 0 {
		return nil, ErrEnvelopeNotSealed
	}

	secret, err := ComputeSharedSecret(id.PrivateKey, data[2:sealedHeaderSize])
	if err != nil {
		return nil, fmt.Errorf("computing shared secret: %w", err)
	}
	return macThenDecrypt(secret, data[sealedHeaderSize:])
}

// IsSealed reports whether envelope bytes carry the sealed flag.
func IsSealed(data []byte) bool {
	return len(data) >= 2 && data[1]&FlagSealed != 0
}
