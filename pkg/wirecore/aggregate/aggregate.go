// Package aggregate implements the message aggregator of spec §4.3: it
// coalesces a decoded message-start plus zero or more content chunks into a
// single self-contained FullMessage, enforcing a payload size limit and
// Expect: 100-continue handling. It consumes http1.Decoder's event stream
// directly (it implements http1.EventSink) and is also the substrate for the
// server upgrade handshake, since the WebSocket handshake request/response
// is itself just a FullMessage with an empty body.
package aggregate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/header"
	"github.com/andresvela/wirecore/pkg/wirecore/http1"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
)

// ErrOversizeResponse is the hard error surfaced (spec §4.3's "oversized
// responses cause immediate close and an upstream TooLongFrame error") when
// a response body exceeds MaxContentLength — unlike an oversized request,
// there is no synthesizable reply to send back to the peer.
var ErrOversizeResponse = errors.New("aggregate: response content exceeds maxContentLength")

// ExpectationFailed is the pipeline user event fired when the aggregator
// rejects a request, either for an oversize body or an unsupported Expect
// token (spec §7's ExpectationFailed error kind).
type ExpectationFailed struct {
	StatusCode int
	Cause      string
}

// FullMessage is spec §3's "self-contained" aggregated message: a decoded
// start paired with its complete body and any chunked trailer.
type FullMessage struct {
	Start   *http1.Message
	Content []byte
	Trailer *header.Values
}

// Config holds the aggregator's tunables (spec §6).
type Config struct {
	MaxContentLength         int64
	CloseOnExpectationFailed bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MaxContentLength: 10 << 20, CloseOnExpectationFailed: true}
}

type state uint8

const (
	stAwaitStart state = iota
	stAggregating
	stRejecting
)

// Aggregator is the state machine of spec §4.3. One Aggregator is created
// per connection and installed as the Decoder's EventSink.
type Aggregator struct {
	cfg Config
	pl  pipeline.Pipeline

	st   state
	cur  *http1.Message
	body []byte

	closeRequested bool
	err            error
}

// New constructs an Aggregator that writes synthesized control responses
// (100-Continue, 413, 417) and raises ExpectationFailed events through pl.
func New(cfg Config, pl pipeline.Pipeline) *Aggregator {
	return &Aggregator{cfg: cfg, pl: pl, st: stAwaitStart}
}

// CloseRequested reports whether the aggregator has decided the connection
// must be closed after its most recent synthesized response has flushed
// (spec §4.3: non-keep-alive or already-complete oversize requests).
func (a *Aggregator) CloseRequested() bool { return a.closeRequested }

// Err returns a pending hard error (ErrOversizeResponse), if any, raised
// from within OnChunk/OnLastChunk where the http1.EventSink contract has no
// error return of its own. The caller should check this after each Decode
// call, the same way it checks Decode's own return value.
func (a *Aggregator) Err() error { return a.err }

// OnMessageStart implements http1.EventSink.
func (a *Aggregator) OnMessageStart(m *http1.Message) {
	if !m.Result.Success {
		// The decoder already paired this with an immediate OnLastChunk;
		// forward the failure as-is and stay in AwaitStart.
		a.pl.FireRead(&FullMessage{Start: m})
		return
	}

	expect, hasExpect := m.Header.Get("Expect")
	declaredLen, hasLen := contentLength(m)

	if hasExpect {
		if !strings.EqualFold(expect, "100-continue") {
			a.reject(m, 417, "unsupported-expectation")
			return
		}
		if hasLen && declaredLen > a.cfg.MaxContentLength {
			a.reject(m, 413, "content-too-large")
			return
		}
		m.Header.Del("Expect")
		a.pl.WriteAndFlush(continueResponse)
		a.beginAggregating(m)
		return
	}

	if hasLen && declaredLen > a.cfg.MaxContentLength {
		if m.HasNoBody() {
			a.closeRequested = true
		}
		a.reject(m, 413, "content-too-large")
		return
	}

	a.beginAggregating(m)
}

func (a *Aggregator) beginAggregating(m *http1.Message) {
	a.cur = m
	a.body = a.body[:0]
	a.st = stAggregating
}

func (a *Aggregator) reject(m *http1.Message, status int, cause string) {
	a.cur = m
	a.st = stRejecting
	switch status {
	case 413:
		a.pl.WriteAndFlush(tooLargeResponse)
	case 417:
		a.pl.WriteAndFlush(expectationFailedResponse)
	}
	a.pl.FireUserEvent(ExpectationFailed{StatusCode: status, Cause: cause})
	if !m.IsKeepAlive() && a.cfg.CloseOnExpectationFailed {
		a.closeRequested = true
	}
}

func contentLength(m *http1.Message) (int64, bool) {
	v, ok := m.Header.Get("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// OnChunk implements http1.EventSink.
func (a *Aggregator) OnChunk(data buf.Buffer) {
	defer data.Release()

	switch a.st {
	case stAggregating:
		a.body = append(a.body, data.Bytes()...)
		if int64(len(a.body)) > a.cfg.MaxContentLength {
			a.overflow()
		}
	case stRejecting, stAwaitStart:
		// discarded
	}
}

func (a *Aggregator) overflow() {
	if a.cur.Kind == http1.KindResponse {
		a.err = ErrOversizeResponse
		a.closeRequested = true
		a.st = stRejecting
		return
	}
	a.reject(a.cur, 413, "content-too-large")
}

// OnLastChunk implements http1.EventSink.
func (a *Aggregator) OnLastChunk(data buf.Buffer, trailer *header.Values) {
	defer data.Release()

	switch a.st {
	case stAggregating:
		a.body = append(a.body, data.Bytes()...)
		if int64(len(a.body)) > a.cfg.MaxContentLength {
			a.overflow()
			a.st = stAwaitStart
			return
		}
		backfill(a.cur, len(a.body))
		fm := &FullMessage{Start: a.cur, Content: append([]byte(nil), a.body...), Trailer: trailer}
		a.st = stAwaitStart
		a.cur = nil
		a.pl.FireRead(fm)
	case stRejecting, stAwaitStart:
		a.st = stAwaitStart
		a.cur = nil
	}
}

// backfill rewrites m's framing headers to describe the now-fully-known
// body length, stripping the Transfer-Encoding the wire framing used and
// replacing it with an exact Content-Length (spec §4.3 "Content-Length
// backfill... Transfer-Encoding strip on finish").
func backfill(m *http1.Message, n int) {
	m.Header.Del("Transfer-Encoding")
	m.Header.Set("Content-Length", strconv.Itoa(n))
}

var (
	continueResponse          = "HTTP/1.1 100 Continue\r\nContent-Length: 0\r\n\r\n"
	tooLargeResponse          = "HTTP/1.1 413 Request Entity Too Large\r\nContent-Length: 0\r\n\r\n"
	expectationFailedResponse = "HTTP/1.1 417 Expectation Failed\r\nContent-Length: 0\r\n\r\n"
)
