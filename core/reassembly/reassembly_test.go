package reassembly

import (
	"bytes"
	"testing"
	"time"

	"github.com/aeriden/stratolink/core/codec"
)

func chunk(imageID, index, count uint16, data string) *codec.ImageChunk {
	return &codec.ImageChunk{
		ImageID:    imageID,
		ChunkIndex: index,
		ChunkCount: count,
		Data:       []byte(data),
	}
}

func TestAssemblerSingleChunk(t *testing.T) {
	a := New()

	image, done := a.HandleChunk(chunk(1, 0, 1, "whole image"))
	if !done {
		t.Fatal("HandleChunk() done = false, want true for a one-chunk image")
	}
	if !bytes.Equal(image, []byte("whole image")) {
		t.Errorf("image = %q, want %q", image, "whole image")
	}
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", a.PendingCount())
	}
}

func TestAssemblerInOrder(t *testing.T) {
	a := New()

	if _, done := a.HandleChunk(chunk(7, 0, 3, "aaa")); done {
		t.Error("done = true after 1 of 3 chunks")
	}
	if _, done := a.HandleChunk(chunk(7, 1, 3, "bbb")); done {
		t.Error("done = true after 2 of 3 chunks")
	}

	image, done := a.HandleChunk(chunk(7, 2, 3, "ccc"))
	if !done {
		t.Fatal("done = false after final chunk")
	}
	if !bytes.Equal(image, []byte("aaabbbccc")) {
		t.Errorf("image = %q, want %q", image, "aaabbbccc")
	}
}

func TestAssemblerOutOfOrder(t *testing.T) {
	a := New()

	a.HandleChunk(chunk(3, 2, 3, "ccc"))
	a.HandleChunk(chunk(3, 0, 3, "aaa"))

	image, done := a.HandleChunk(chunk(3, 1, 3, "bbb"))
	if !done {
		t.Fatal("done = false after all chunks arrived")
	}
	if !bytes.Equal(image, []byte("aaabbbccc")) {
		t.Errorf("image = %q, want %q", image, "aaabbbccc")
	}
}

func TestAssemblerDuplicateChunk(t *testing.T) {
	// Link-layer retries can deliver the same chunk twice. The duplicate
	// must not complete the image early or corrupt the slot.
	a := New()

	a.HandleChunk(chunk(9, 0, 2, "first"))
	if _, done := a.HandleChunk(chunk(9, 0, 2, "first")); done {
		t.Error("done = true after a duplicate of chunk 0")
	}

	received, total, ok := a.Progress(9)
	if !ok || received != 1 || total != 2 {
		t.Errorf("Progress() = %d/%d ok=%v, want 1/2 ok=true", received, total, ok)
	}

	image, done := a.HandleChunk(chunk(9, 1, 2, " second"))
	if !done {
		t.Fatal("done = false after final chunk")
	}
	if !bytes.Equal(image, []byte("first second")) {
		t.Errorf("image = %q, want %q", image, "first second")
	}
}

func TestAssemblerInterleavedImages(t *testing.T) {
	a := New()

	a.HandleChunk(chunk(1, 0, 2, "1a"))
	a.HandleChunk(chunk(2, 0, 2, "2a"))
	if a.PendingCount() != 2 {
		t.Errorf("PendingCount() = %d, want 2", a.PendingCount())
	}

	image2, done := a.HandleChunk(chunk(2, 1, 2, "2b"))
	if !done || !bytes.Equal(image2, []byte("2a2b")) {
		t.Errorf("image 2 = %q done=%v, want %q done=true", image2, done, "2a2b")
	}

	image1, done := a.HandleChunk(chunk(1, 1, 2, "1b"))
	if !done || !bytes.Equal(image1, []byte("1a1b")) {
		t.Errorf("image 1 = %q done=%v, want %q done=true", image1, done, "1a1b")
	}
}

func TestAssemblerCountMismatchRestarts(t *testing.T) {
	a := New()

	a.HandleChunk(chunk(5, 0, 3, "old"))

	// The sender restarted the image with a different chunk count; stale
	// state is discarded.
	if _, done := a.HandleChunk(chunk(5, 0, 2, "new")); done {
		t.Error("done = true after restart chunk")
	}

	image, done := a.HandleChunk(chunk(5, 1, 2, " tail"))
	if !done {
		t.Fatal("done = false after final chunk of restarted image")
	}
	if !bytes.Equal(image, []byte("new tail")) {
		t.Errorf("image = %q, want %q", image, "new tail")
	}
}

func TestAssemblerRejectsBadIndex(t *testing.T) {
	a := New()

	if _, done := a.HandleChunk(chunk(4, 2, 2, "x")); done {
		t.Error("done = true for out-of-range chunk index")
	}
	if _, done := a.HandleChunk(chunk(4, 0, 0, "x")); done {
		t.Error("done = true for zero chunk count")
	}
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", a.PendingCount())
	}
}

func TestAssemblerTimeout(t *testing.T) {
	a := NewWithTimeout(50 * time.Millisecond)

	a.HandleChunk(chunk(6, 0, 2, "aaa"))
	if a.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", a.PendingCount())
	}

	time.Sleep(60 * time.Millisecond)

	// The next handled chunk triggers expiry of the stale image, then
	// starts a fresh one.
	if _, done := a.HandleChunk(chunk(6, 1, 2, "bbb")); done {
		t.Error("done = true even though chunk 0 expired")
	}
	received, total, ok := a.Progress(6)
	if !ok || received != 1 || total != 2 {
		t.Errorf("Progress() = %d/%d ok=%v, want 1/2 ok=true", received, total, ok)
	}
}

func TestAssemblerClear(t *testing.T) {
	a := New()
	a.HandleChunk(chunk(8, 0, 4, "x"))
	a.Clear()
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Clear, want 0", a.PendingCount())
	}
}
