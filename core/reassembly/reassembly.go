// Package reassembly reconstructs images from image-chunk payloads.
//
// A camera image is split across many chunk packets, each carrying the
// image identifier, its position, and the total chunk count. Chunks may
// arrive out of order and may be duplicated by link-layer retries; the
// assembler slots each chunk by index and emits the image once every
// position is filled.
package reassembly

import (
	"time"

	"github.com/aeriden/stratolink/core/codec"
)

// DefaultTimeout is how long an incomplete image is kept before being
// discarded. Chunks can be many seconds apart on a slow link.
const DefaultTimeout = 60 * time.Second

type imageState struct {
	chunks    [][]byte
	received  int
	startTime time.Time
}

// Assembler collects image chunks and emits complete images.
type Assembler struct {
	pending map[uint16]*imageState
	timeout time.Duration
}

// New creates an Assembler with the default timeout.
func New() *Assembler {
	return NewWithTimeout(DefaultTimeout)
}

// NewWithTimeout creates an Assembler that discards incomplete images
// older than timeout.
func NewWithTimeout(timeout time.Duration) *Assembler {
	return &Assembler{
		pending: make(map[uint16]*imageState),
		timeout: timeout,
	}
}

// HandleChunk slots one chunk into its image. It returns the assembled
// image and true when the final missing chunk arrives, or nil and false
// while more are expected. Duplicate chunks are ignored. A chunk whose
// declared count disagrees with the in-progress image restarts that
// image from scratch.
func (a *Assembler) HandleChunk(c *codec.ImageChunk) ([]byte, bool) {
	a.expire()

	if c.ChunkCount == 0 || int(c.ChunkIndex) >= int(c.ChunkCount) {
		return nil, false
	}

	state, exists := a.pending[c.ImageID]
	if exists && len(state.chunks) != int(c.ChunkCount) {
		exists = false
	}
	if !exists {
		state = &imageState{
			chunks:    make([][]byte, c.ChunkCount),
			startTime: time.Now(),
		}
		a.pending[c.ImageID] = state
	}

	if state.chunks[c.ChunkIndex] != nil {
		return nil, false
	}
	state.chunks[c.ChunkIndex] = append([]byte(nil), c.Data...)
	state.received++

	if state.received < len(state.chunks) {
		return nil, false
	}

	delete(a.pending, c.ImageID)
	return assemble(state), true
}

func assemble(state *imageState) []byte {
	totalLen := 0
	for _, c := range state.chunks {
		totalLen += len(c)
	}
	image := make([]byte, 0, totalLen)
	for _, c := range state.chunks {
		image = append(image, c...)
	}
	return image
}

// Progress reports how many chunks of an in-progress image have arrived
// and how many are expected. ok is false if the image is unknown.
func (a *Assembler) Progress(imageID uint16) (received, total int, ok bool) {
	state, exists := a.pending[imageID]
	if !exists {
		return 0, 0, false
	}
	return state.received, len(state.chunks), true
}

// expire removes timed-out reassembly states.
func (a *Assembler) expire() {
	now := time.Now()
	for id, state := range a.pending {
		if now.Sub(state.startTime) > a.timeout {
			delete(a.pending, id)
		}
	}
}

// PendingCount returns the number of in-progress images.
func (a *Assembler) PendingCount() int {
	return len(a.pending)
}

// Clear discards all in-progress images.
func (a *Assembler) Clear() {
	clear(a.pending)
}
