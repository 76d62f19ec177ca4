package websocket

import "sync"

// framePool recycles Frame structs, grounded on the teacher's tiered
// sync.Pool scheme in shockwave/pkg/shockwave/websocket/pool.go — here
// collapsed to a single pool since the payload buffer itself is already
// pool-backed by buf.Pooled, so only the small Frame header struct benefits
// from reuse.
var framePool = sync.Pool{New: func() any { return new(Frame) }}

// GetFrame returns a zeroed Frame from the pool.
func GetFrame() *Frame {
	f := framePool.Get().(*Frame)
	*f = Frame{}
	return f
}

// PutFrame returns f to the pool. The caller must have already released
// f.Payload.
func PutFrame(f *Frame) {
	f.Payload = nil
	framePool.Put(f)
}
