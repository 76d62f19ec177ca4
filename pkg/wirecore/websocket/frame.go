package websocket

import "github.com/andresvela/wirecore/pkg/wirecore/buf"

// Frame is a single decoded WebSocket frame (spec.md §4.4, RFC 6455 §5.2).
// Payload is a zero-copy slice retained from the decoder's input buffer;
// ownership transfers to whoever receives the Frame from a FrameSink, which
// must call Payload.Release() exactly once (spec §5 "Shared resources").
type Frame struct {
	Fin     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	MaskKey [4]byte
	Payload buf.Buffer
}

// IsControl reports whether Opcode names a control frame (Close, Ping, Pong).
func (f *Frame) IsControl() bool { return isControlOpcode(f.Opcode) }

// IsData reports whether Opcode names a data frame (Continuation, Text,
// Binary).
func (f *Frame) IsData() bool { return !isControlOpcode(f.Opcode) }

// Release releases Payload back to its buffer pool and returns f to
// framePool. Callers that consume a Frame's payload synchronously (the
// common case for a FrameSink) call this once they are done with it instead
// of releasing Payload directly.
func (f *Frame) Release() {
	if f.Payload != nil {
		f.Payload.Release()
	}
	PutFrame(f)
}

// FrameSink receives decoded frames, one call per complete frame (spec.md
// §4.4 step 5). The sink owns Frame.Payload once received.
type FrameSink interface {
	OnFrame(f *Frame)
}
