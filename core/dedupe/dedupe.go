// Package dedupe suppresses duplicate frame deliveries.
//
// When an acknowledgement is lost the sender retransmits a frame the
// receiver already handled, so the receive path sees the same frame more
// than once. The filter keeps a circular window of truncated SHA256 hashes
// over frame type, sequence number and payload: a retransmission hashes
// identically and is reported as seen, while a new frame reusing a wrapped
// sequence number differs in payload and passes.
package dedupe

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/aeriden/stratolink/core/codec"
)

const (
	// DefaultWindow is the default number of frame hashes remembered.
	DefaultWindow = 128
	// HashSize is the truncated SHA256 hash size kept per frame.
	HashSize = 8
)

// Filter tracks recently seen frames so duplicates can be dropped.
// It is not safe for concurrent use; the link delivers frames serially.
type Filter struct {
	window [][HashSize]byte
	next   int
}

// New creates a Filter remembering DefaultWindow frames.
func New() *Filter {
	return NewWithWindow(DefaultWindow)
}

// NewWithWindow creates a Filter remembering the given number of frames.
func NewWithWindow(n int) *Filter {
	if n < 1 {
		n = 1
	}
	return &Filter{window: make([][HashSize]byte, n)}
}

// Seen reports whether the frame was delivered recently. Unseen frames are
// recorded and reported false, so a second delivery of the same frame
// returns true.
func (f *Filter) Seen(frame *codec.Frame) bool {
	h := Hash(frame)
	for i := range f.window {
		if f.window[i] == h {
			return true
		}
	}
	f.window[f.next] = h
	f.next = (f.next + 1) % len(f.window)
	return false
}

// Clear forgets all previously seen frames.
func (f *Filter) Clear() {
	clear(f.window)
	f.next = 0
}

// Hash computes the deduplication hash for a frame: SHA256 over the frame
// type, big-endian sequence number and payload, truncated to HashSize bytes.
func Hash(frame *codec.Frame) [HashSize]byte {
	h := sha256.New()
	var hdr [3]byte
	hdr[0] = byte(frame.Type)
	binary.BigEndian.PutUint16(hdr[1:], frame.Seq)
	h.Write(hdr[:])
	h.Write(frame.Payload)
	sum := h.Sum(nil)
	var out [HashSize]byte
	copy(out[:], sum[:HashSize])
	return out
}
