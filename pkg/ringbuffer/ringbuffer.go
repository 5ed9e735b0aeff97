// Package ringbuffer implements a fixed-capacity circular byte buffer for a
// single producer and a single consumer. Capacity is a power of two so that
// storage indexes derive from the logical cursors with a bitmask; only the
// masked index wraps, the cursors themselves grow monotonically.
package ringbuffer

import (
	"encoding/hex"
	"errors"
	"sync"
)

// Sentinel errors.
var (
	ErrInvalidCapacity  = errors.New("ringbuffer: capacity must be a non-zero power of two")
	ErrInvalidParameter = errors.New("ringbuffer: invalid parameter")
	ErrBufferOverflow   = errors.New("ringbuffer: buffer overflow")
)

// ReadFunc receives a contiguous view of buffered bytes. Returning true
// commits the read; returning false leaves the buffer untouched so the same
// bytes are delivered again later. The view is valid only for the duration
// of the call and must not be retained.
type ReadFunc func(data []byte) bool

// RingBuffer is a bounded FIFO byte store. All public methods take the
// internal lock exactly once; helpers that assume the lock is held are
// private. ReadFunc callbacks run with the lock released so a callback may
// call back into the buffer without deadlocking.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	mask uint64

	rpos  uint64 // logical read cursor, masked on storage access
	wpos  uint64 // logical write cursor, masked on storage access
	count uint64 // unread bytes in [rpos, rpos+count)
}

// New creates a buffer holding up to capacity bytes. The capacity must be a
// non-zero power of two; anything else would silently corrupt the masked
// index arithmetic, so it is rejected unconditionally.
func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer{
		buf:  make([]byte, capacity),
		mask: uint64(capacity) - 1,
	}, nil
}

// Write copies p into the buffer. The write is all-or-nothing: if p does not
// fit into the free space, ErrBufferOverflow is returned and nothing is
// committed. An empty p is rejected with ErrInvalidParameter.
func (b *RingBuffer) Write(p []byte) error {
	if len(p) == 0 {
		return ErrInvalidParameter
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count+uint64(len(p)) > uint64(len(b.buf)) {
		return ErrBufferOverflow
	}

	w := int(b.wpos & b.mask)
	n := copy(b.buf[w:], p)
	if n < len(p) {
		// run crosses the end of storage, wrap to the head
		copy(b.buf, p[n:])
	}
	b.wpos += uint64(len(p))
	b.count += uint64(len(p))
	return nil
}

// Read copies up to len(p) buffered bytes into p and consumes them. It
// returns the number of bytes copied, zero when the buffer is empty.
func (b *RingBuffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.copyOut(p)
	b.rpos += uint64(n)
	b.count -= uint64(n)
	return n
}

// ReadFunc hands min(n, Buffered()) bytes to fn as one contiguous slice.
// When the requested range does not wrap it is a direct view into storage;
// a wrapped range is reassembled into a temporary copy first. The read is
// committed only if fn accepts it, making consumption at-most-once and
// caller-gated. Returns the number of bytes consumed (0 on refusal).
//
// The lock is dropped around fn. With a single consumer this is safe even
// for direct views: a concurrent producer only writes into free space,
// which never overlaps the unread range the view covers.
func (b *RingBuffer) ReadFunc(n int, fn ReadFunc) int {
	if n <= 0 || fn == nil {
		return 0
	}

	b.mu.Lock()
	want := uint64(n)
	if want > b.count {
		want = b.count
	}
	if want == 0 {
		b.mu.Unlock()
		return 0
	}
	r := b.rpos & b.mask
	var view []byte
	if r+want <= uint64(len(b.buf)) {
		view = b.buf[r : r+want]
	} else {
		// wrap is the unavoidable cost of circularity
		view = make([]byte, want)
		first := copy(view, b.buf[r:])
		copy(view[first:], b.buf)
	}
	b.mu.Unlock()

	accepted := fn(view)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !accepted {
		return 0
	}
	b.rpos += want
	b.count -= want
	return int(want)
}

// Drain discards up to n buffered bytes without copying them out and
// returns the number discarded. Requests beyond the buffered count clamp.
func (b *RingBuffer) Drain(n int) int {
	if n <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	want := uint64(n)
	if want > b.count {
		want = b.count
	}
	b.rpos += want
	b.count -= want
	return int(want)
}

// Clear resets the cursors and the buffered count. Capacity is unchanged.
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rpos = 0
	b.wpos = 0
	b.count = 0
}

// Capacity returns the fixed byte capacity.
func (b *RingBuffer) Capacity() int {
	return len(b.buf)
}

// Buffered returns the number of unread bytes currently held.
func (b *RingBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.count)
}

func (b *RingBuffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == 0
}

func (b *RingBuffer) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == uint64(len(b.buf))
}

// HexString renders the buffered bytes, in read order, as a hex string.
// Debug aid for trace logging, not a consuming read.
func (b *RingBuffer) HexString() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.count)
	b.copyOut(out)
	return hex.EncodeToString(out)
}

// copyOut copies up to len(p) unread bytes into p without committing the
// read. Lock must be held.
func (b *RingBuffer) copyOut(p []byte) int {
	want := uint64(len(p))
	if want > b.count {
		want = b.count
	}
	if want == 0 {
		return 0
	}
	r := int(b.rpos & b.mask)
	first := copy(p[:want], b.buf[r:])
	if uint64(first) < want {
		copy(p[first:want], b.buf)
	}
	return int(want)
}
