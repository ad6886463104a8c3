// Package codec implements the stratolink wire format: frame encoding and
// decoding with independent header and payload checksums, a streaming framer
// for receive-side byte streams, and the typed payload layouts carried inside
// frames.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// StartSync1 and StartSync2 begin every frame.
	StartSync1 = 0xAA
	StartSync2 = 0x55
	// EndSync1 and EndSync2 terminate every frame.
	EndSync1 = 0x0D
	EndSync2 = 0x0A

	// HeaderSize is sync(2) + type(1) + sequence(2) + length(2) + CRC8(1).
	HeaderSize = 8
	// TrailerSize is CRC16(2) + end sync(2).
	TrailerSize = 4
	// FrameOverhead is the fixed per-frame cost in bytes.
	FrameOverhead = HeaderSize + TrailerSize
	// MaxPayloadSize is the largest payload a frame may carry, derived from
	// the radio's 212-byte maximum transmission unit.
	MaxPayloadSize = 200
	// MaxFrameSize is the largest possible encoded frame.
	MaxFrameSize = FrameOverhead + MaxPayloadSize
	// MinFrameSize is an empty-payload frame.
	MinFrameSize = FrameOverhead
)

var (
	ErrFrameTooShort           = errors.New("frame too short")
	ErrInvalidSync             = errors.New("invalid sync bytes")
	ErrPayloadTooLarge         = errors.New("payload exceeds maximum size")
	ErrHeaderChecksumMismatch  = errors.New("header checksum mismatch")
	ErrPayloadChecksumMismatch = errors.New("payload checksum mismatch")
	ErrUnknownType             = errors.New("unknown packet type")
	ErrLengthMismatch          = errors.New("declared length does not match frame size")
)

// PacketType identifies the payload category of a frame. The set is closed;
// Decode rejects frames with any other value.
type PacketType uint8

const (
	TypeHeartbeat  PacketType = 0x01
	TypeTelemetry  PacketType = 0x02
	TypePosition   PacketType = 0x03
	TypeImageChunk PacketType = 0x04
	TypeAlert      PacketType = 0x05
	TypeAck        PacketType = 0x06
	TypeNack       PacketType = 0x07
	TypeStatus     PacketType = 0x08
	TypeDebug      PacketType = 0x09
)

// Known reports whether t is a member of the closed packet type set.
func (t PacketType) Known() bool {
	return t >= TypeHeartbeat && t <= TypeDebug
}

// String returns a human-readable name for the packet type.
func (t PacketType) String() string {
	switch t {
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeTelemetry:
		return "TELEMETRY"
	case TypePosition:
		return "POSITION"
	case TypeImageChunk:
		return "IMAGE_CHUNK"
	case TypeAlert:
		return "ALERT"
	case TypeAck:
		return "ACK"
	case TypeNack:
		return "NACK"
	case TypeStatus:
		return "STATUS"
	case TypeDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// Frame is one complete wire unit. Type, Seq and Payload are carried on the
// wire; RSSI, SNR and Valid are receive-side attributes. Valid is set only by
// Decode, after both checksums passed.
type Frame struct {
	Type    PacketType
	Seq     uint16
	Payload []byte

	RSSI  int16   // dBm at reception
	SNR   float32 // dB at reception
	Valid bool
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	clone := &Frame{
		Type:  f.Type,
		Seq:   f.Seq,
		RSSI:  f.RSSI,
		SNR:   f.SNR,
		Valid: f.Valid,
	}
	if len(f.Payload) > 0 {
		clone.Payload = make([]byte, len(f.Payload))
		copy(clone.Payload, f.Payload)
	}
	return clone
}

// Encode assembles a wire frame.
// Layout: [0xAA 0x55][type][seq BE16][len BE16][CRC8 over bytes 0..6]
// [payload][CRC16 BE over type+seq+len+payload][0x0D 0x0A]
func Encode(t PacketType, seq uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, FrameOverhead+len(payload))
	frame[0] = StartSync1
	frame[1] = StartSync2
	frame[2] = byte(t)
	binary.BigEndian.PutUint16(frame[3:5], seq)
	binary.BigEndian.PutUint16(frame[5:7], uint16(len(payload)))
	frame[7] = CRC8(frame[0:7])

	copy(frame[HeaderSize:], payload)

	off := HeaderSize + len(payload)
	crc := crc16Update(0, frame[2:7])
	crc = crc16Update(crc, payload)
	binary.BigEndian.PutUint16(frame[off:off+2], crc)
	frame[off+2] = EndSync1
	frame[off+3] = EndSync2

	return frame, nil
}

// Decode validates and extracts a frame from data. data must hold exactly one
// complete frame. On any error the returned frame is nil; a Frame is never
// partially populated.
func Decode(data []byte) (*Frame, error) {
	if len(data) < MinFrameSize {
		return nil, ErrFrameTooShort
	}
	if data[0] != StartSync1 || data[1] != StartSync2 {
		return nil, fmt.Errorf("%w: bad start sync", ErrInvalidSync)
	}
	if got := CRC8(data[0:7]); got != data[7] {
		return nil, fmt.Errorf("%w: computed %02x, frame has %02x",
			ErrHeaderChecksumMismatch, got, data[7])
	}

	payloadLen := int(binary.BigEndian.Uint16(data[5:7]))
	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	total := FrameOverhead + payloadLen
	if len(data) < total {
		return nil, fmt.Errorf("%w: declared %d payload bytes, frame is %d",
			ErrFrameTooShort, payloadLen, len(data))
	}
	if len(data) > total {
		return nil, fmt.Errorf("%w: declared %d payload bytes, frame is %d",
			ErrLengthMismatch, payloadLen, len(data))
	}
	if data[total-2] != EndSync1 || data[total-1] != EndSync2 {
		return nil, fmt.Errorf("%w: bad end sync", ErrInvalidSync)
	}

	crc := crc16Update(0, data[2:7])
	crc = crc16Update(crc, data[HeaderSize:HeaderSize+payloadLen])
	received := binary.BigEndian.Uint16(data[HeaderSize+payloadLen:])
	if crc != received {
		return nil, fmt.Errorf("%w: computed %04x, frame has %04x",
			ErrPayloadChecksumMismatch, crc, received)
	}

	t := PacketType(data[2])
	if !t.Known() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, uint8(t))
	}

	frame := &Frame{
		Type:    t,
		Seq:     binary.BigEndian.Uint16(data[3:5]),
		Payload: make([]byte, payloadLen),
		Valid:   true,
	}
	copy(frame.Payload, data[HeaderSize:HeaderSize+payloadLen])
	return frame, nil
}
