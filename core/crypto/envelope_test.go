package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testReport() *Report {
	return &Report{
		Timestamp: 1700000000,
		RSSI:      -91,
		SNR:       5.25,
		Frame:     []byte{0xAA, 0x55, 0x02, 0x00, 0x01, 0x00, 0x00, 0x3B, 0x12, 0x34, 0x0D, 0x0A},
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id, _ := NewIdentity()
	in := testReport()

	signed, err := Sign(id, in)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	out, err := Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !bytes.Equal(out.StationKey[:], id.PublicKey) {
		t.Error("StationKey does not match the signing identity")
	}
	if out.Timestamp != in.Timestamp {
		t.Errorf("Timestamp = %d, want %d", out.Timestamp, in.Timestamp)
	}
	if out.RSSI != in.RSSI {
		t.Errorf("RSSI = %d, want %d", out.RSSI, in.RSSI)
	}
	if out.SNR != in.SNR {
		t.Errorf("SNR = %v, want %v", out.SNR, in.SNR)
	}
	if !bytes.Equal(out.Frame, in.Frame) {
		t.Errorf("Frame = %x, want %x", out.Frame, in.Frame)
	}
}

func TestSignNegativeQuarterDBSNR(t *testing.T) {
	id, _ := NewIdentity()
	in := testReport()
	in.SNR = -3.75
	in.RSSI = -118

	signed, err := Sign(id, in)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	out, err := Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.SNR != -3.75 {
		t.Errorf("SNR = %v, want -3.75", out.SNR)
	}
	if out.RSSI != -118 {
		t.Errorf("RSSI = %d, want -118", out.RSSI)
	}
}

func TestVerifyTamperedFrame(t *testing.T) {
	id, _ := NewIdentity()
	signed, _ := Sign(id, testReport())

	signed[envelopeHeaderSize] ^= 0xFF

	if _, err := Verify(signed); err != ErrBadSignature {
		t.Errorf("Verify() error = %v, want %v", err, ErrBadSignature)
	}
}

func TestVerifyTamperedMetadata(t *testing.T) {
	id, _ := NewIdentity()
	signed, _ := Sign(id, testReport())

	signed[38] ^= 0xFF // rssi high byte

	if _, err := Verify(signed); err != ErrBadSignature {
		t.Errorf("Verify() error = %v, want %v", err, ErrBadSignature)
	}
}

func TestVerifyTooShort(t *testing.T) {
	if _, err := Verify(make([]byte, 10)); err != ErrEnvelopeShort {
		t.Errorf("Verify() error = %v, want %v", err, ErrEnvelopeShort)
	}
}

func TestVerifyWrongVersion(t *testing.T) {
	id, _ := NewIdentity()
	signed, _ := Sign(id, testReport())
	signed[0] = 9

	if _, err := Verify(signed); !errors.Is(err, ErrEnvelopeVersion) {
		t.Errorf("Verify() error = %v, want %v", err, ErrEnvelopeVersion)
	}
}

func TestVerifyLengthMismatch(t *testing.T) {
	id, _ := NewIdentity()
	signed, _ := Sign(id, testReport())
	signed = append(signed, 0x00)

	if _, err := Verify(signed); !errors.Is(err, ErrEnvelopeLength) {
		t.Errorf("Verify() error = %v, want %v", err, ErrEnvelopeLength)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	station, _ := NewIdentity()
	mission, _ := NewIdentity()

	signed, err := Sign(station, testReport())
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	sealed, err := Seal(signed, mission.PublicKey)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !IsSealed(sealed) {
		t.Error("IsSealed(sealed) = false, want true")
	}
	if IsSealed(signed) {
		t.Error("IsSealed(signed) = true, want false")
	}

	opened, err := Open(sealed, mission)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, signed) {
		t.Error("opened envelope does not match the signed original")
	}

	// The opened envelope still verifies against the station key.
	out, err := Verify(opened)
	if err != nil {
		t.Fatalf("Verify(opened) error = %v", err)
	}
	if !bytes.Equal(out.StationKey[:], station.PublicKey) {
		t.Error("StationKey does not match the reporting station")
	}
}

func TestOpenWrongRecipient(t *testing.T) {
	station, _ := NewIdentity()
	mission, _ := NewIdentity()
	eavesdropper, _ := NewIdentity()

	signed, _ := Sign(station, testReport())
	sealed, _ := Seal(signed, mission.PublicKey)

	if _, err := Open(sealed, eavesdropper); err != ErrMACMismatch {
		t.Errorf("Open() error = %v, want %v", err, ErrMACMismatch)
	}
}

func TestOpenNotSealed(t *testing.T) {
	id, _ := NewIdentity()
	signed, _ := Sign(id, testReport())

	if _, err := Open(signed, id); err != ErrEnvelopeNotSealed {
		t.Errorf("Open() error = %v, want %v", err, ErrEnvelopeNotSealed)
	}
}

func TestSealEmptyFrameReport(t *testing.T) {
	id, _ := NewIdentity()
	mission, _ := NewIdentity()

	signed, err := Sign(id, &Report{Timestamp: 1, RSSI: -50})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sealed, err := Seal(signed, mission.PublicKey)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	opened, err := Open(sealed, mission)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	out, err := Verify(opened)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(out.Frame) != 0 {
		t.Errorf("Frame length = %d, want 0", len(out.Frame))
	}
}
