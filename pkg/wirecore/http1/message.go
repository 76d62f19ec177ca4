package http1

import (
	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/header"
)

// Kind distinguishes the two HttpMessage variants named in spec §3: Request
// and Response.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
)

// DecodeResult is success-or-failure-with-cause, carried by every message
// (spec §3's "decode-result"). A message with Result.Success == false is a
// complete event in its own right — the handler decides whether to respond;
// see spec §7's propagation policy.
type DecodeResult struct {
	Success bool
	Cause   Cause
	Err     error
}

// Message is the tagged-sum HttpMessage of spec §3 and design note §9:
// Request carries Method/Target, Response carries StatusCode/Reason; both
// carry a protocol version and a header map.
type Message struct {
	Kind Kind

	// Request fields.
	Method string
	Target string

	// Response fields.
	StatusCode int
	Reason     string

	ProtoMajor int
	ProtoMinor int

	Header header.Values
	Result DecodeResult

	// noBody records the always-empty-body classification resolved at
	// header-parse time (spec §4.1 priority list, §9 note (c)).
	noBody bool
	// keepAlive records whether this message's framing allows the
	// connection to remain open afterward.
	keepAlive bool
}

// HasNoBody reports the always-empty-body classification the decoder
// resolved at header-parse time (spec §4.1 priority list, §9 note (c)).
// Always false for a Message the caller is about to hand to Encoder, which
// recomputes the classification itself from Kind/StatusCode/method.
func (m *Message) HasNoBody() bool { return m.noBody }

// IsKeepAlive reports whether this message's framing allows the connection
// to remain open afterward, as resolved from its Connection header and
// protocol version at decode time.
func (m *Message) IsKeepAlive() bool { return m.keepAlive }

// Proto renders the message's version as "HTTP/1.0" or "HTTP/1.1".
func (m *Message) Proto() string {
	if m.ProtoMinor == 0 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// Reset clears a Message for reuse.
func (m *Message) Reset() {
	m.Kind = KindRequest
	m.Method = ""
	m.Target = ""
	m.StatusCode = 0
	m.Reason = ""
	m.ProtoMajor = 0
	m.ProtoMinor = 0
	m.Header.Reset()
	m.Result = DecodeResult{}
	m.noBody = false
	m.keepAlive = false
}

// EventSink receives the decoder's output: exactly one OnMessageStart per
// logical message, zero or more OnChunk, exactly one OnLastChunk (spec §3's
// "Decoded stream" invariant). Chunk payloads are handed over as a retained,
// zero-copy buf.Buffer slice of the decoder's input: ownership transfers to
// the sink, which must Release() it when done (spec §3 Lifecycle, §9
// "Reference-counted buffers").
type EventSink interface {
	OnMessageStart(m *Message)
	OnChunk(data buf.Buffer)
	OnLastChunk(data buf.Buffer, trailer *header.Values)
}
