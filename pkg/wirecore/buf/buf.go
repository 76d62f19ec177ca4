// Package buf defines the byte-container abstraction the codec consumes
// from its owning pipeline: a reference-counted buffer supporting
// readable-length queries, read-index advance, zero-copy slicing, and
// sequential byte traversal. The codec never copies payload bytes; it
// slices them from whatever Buffer the caller hands it.
//
// Buffer allocation, pooling, and reference counting are explicitly external
// collaborators (see spec §1, §6) — this package defines the interface the
// core consumes, plus one concrete, pool-backed implementation so the
// package is usable standalone.
package buf

import "errors"

// ErrShortBuffer indicates fewer readable bytes remain than the operation
// requires.
var ErrShortBuffer = errors.New("buf: short buffer")

// Buffer is the external byte container the codec reads from and slices.
// A Buffer tracks its own read index; ReadableBytes reports bytes between
// the read index and the end of the buffer's writable content.
type Buffer interface {
	// ReadableBytes returns the number of bytes available to read.
	ReadableBytes() int

	// Bytes returns the readable window without advancing the read index.
	// The returned slice is only valid until the next mutation of the
	// buffer (Slice, Discard, Release, or a further Write).
	Bytes() []byte

	// ReadByte consumes and returns the next byte.
	ReadByte() (byte, error)

	// ReadUint16 / ReadUint32 / ReadUint64 consume a big-endian integer.
	ReadUint16() (uint16, error)
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)

	// Discard advances the read index by n bytes without copying.
	Discard(n int) error

	// Slice returns a new Buffer sharing this buffer's backing storage,
	// covering the next n readable bytes, and advances this buffer's read
	// index past them. The returned Buffer's reference count is retained
	// against the shared backing array; Release must be called exactly
	// once per Slice (or per Retain) to return storage to its pool.
	Slice(n int) (Buffer, error)

	// ForEachByte calls fn for each readable byte in order, starting from
	// the read index, stopping early if fn returns false. It returns the
	// number of bytes visited. It does not advance the read index.
	ForEachByte(fn func(b byte) bool) int

	// WriteByte appends a single byte to the buffer's writable tail.
	WriteByte(b byte) error

	// Write appends p to the buffer's writable tail.
	Write(p []byte) (int, error)

	// Retain increments the shared reference count and returns the same
	// logical buffer (netty-style retain-by-identity); used when an event
	// consumer needs to extend a slice's lifetime beyond the emitting call.
	Retain() Buffer

	// Release decrements the shared reference count. At zero, the backing
	// storage is returned to its pool (for pool-backed implementations) or
	// otherwise made eligible for collection.
	Release()

	// RefCount reports the current shared reference count.
	RefCount() int32
}

// Grower is implemented by root, writable Buffers that can pre-size their
// backing storage. Callers that can estimate an upcoming write size (such as
// http1's EMA header-size reservation) use this to avoid repeated
// reallocation during Write/WriteByte; it is optional because non-root
// slices and simple test doubles have no writable tail to grow.
type Grower interface {
	Grow(n int)
}
