package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFraming reports a malformed frame detected before assembly completed:
// a bad header checksum or an impossible declared length. The framer recovers
// by resynchronizing on the next start sync.
var ErrFraming = errors.New("framing error")

type framerState uint8

const (
	stateSeekSync framerState = iota
	stateHeader
	statePayload
)

// FramerConfig holds configuration for a Framer.
type FramerConfig struct {
	// MaxPayloadSize caps the payload length accepted from a frame header.
	// Defaults to MaxPayloadSize; lower it for radios with a smaller MTU.
	MaxPayloadSize int
	// OnError, if set, is invoked once per framing or validation error.
	OnError func(error)
}

// Framer turns an arbitrarily chunked byte stream into validated frames.
//
// It runs a four-stage parse: scan for the two-byte start sync, accumulate
// and check the header, accumulate payload and trailer per the declared
// length, then hand the assembled buffer to Decode for final validation.
// A sync mismatch advances a single byte, so a start sync embedded in
// garbage is still found. A bad header discards the partial buffer and
// resynchronizes; the bad bytes are not rescanned.
//
// Feed may be called with any chunking of the stream, one byte at a time or
// many, with identical results. Framer is not safe for concurrent use.
type Framer struct {
	maxPayload int
	onError    func(error)

	state framerState
	buf   [MaxFrameSize]byte
	n     int // bytes accumulated in buf
	need  int // total frame size, known once the header is parsed
}

// NewFramer creates a Framer, filling zero values in cfg with defaults.
func NewFramer(cfg FramerConfig) *Framer {
	if cfg.MaxPayloadSize <= 0 || cfg.MaxPayloadSize > MaxPayloadSize {
		cfg.MaxPayloadSize = MaxPayloadSize
	}
	return &Framer{
		maxPayload: cfg.MaxPayloadSize,
		onError:    cfg.OnError,
	}
}

// Feed consumes data and returns any frames completed by it. Invalid frames
// are reported through OnError and never returned.
func (f *Framer) Feed(data []byte) []*Frame {
	var frames []*Frame
	for _, b := range data {
		if frame := f.feedByte(b); frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Reset discards any partial frame and returns to sync scanning. Call it
// after a radio reset or reconnect, when stream continuity is lost.
func (f *Framer) Reset() {
	f.state = stateSeekSync
	f.n = 0
	f.need = 0
}

func (f *Framer) feedByte(b byte) *Frame {
	switch f.state {
	case stateSeekSync:
		if f.n == 0 {
			if b == StartSync1 {
				f.buf[0] = b
				f.n = 1
			}
			return nil
		}
		if b == StartSync2 {
			f.buf[1] = b
			f.n = 2
			f.state = stateHeader
			return nil
		}
		if b == StartSync1 {
			// Could be the first byte of the real sync pair.
			return nil
		}
		f.n = 0
		return nil

	case stateHeader:
		f.buf[f.n] = b
		f.n++
		if f.n < HeaderSize {
			return nil
		}
		if got := CRC8(f.buf[0:7]); got != f.buf[7] {
			f.report(fmt.Errorf("%w: header checksum computed %02x, got %02x",
				ErrFraming, got, f.buf[7]))
			f.Reset()
			return nil
		}
		payloadLen := int(binary.BigEndian.Uint16(f.buf[5:7]))
		if payloadLen > f.maxPayload {
			f.report(fmt.Errorf("%w: declared payload %d exceeds %d",
				ErrFraming, payloadLen, f.maxPayload))
			f.Reset()
			return nil
		}
		f.need = FrameOverhead + payloadLen
		f.state = statePayload
		return nil

	case statePayload:
		f.buf[f.n] = b
		f.n++
		if f.n < f.need {
			return nil
		}
		frame, err := Decode(f.buf[:f.n])
		f.Reset()
		if err != nil {
			f.report(err)
			return nil
		}
		return frame
	}
	return nil
}

func (f *Framer) report(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}
