package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/header"
)

// Role selects which half of an HTTP exchange a Decoder parses: a server
// decodes Requests, a client decodes Responses. Framing rules differ between
// the two (initial-line token layout, and which side may have a
// connection-close-delimited body).
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// Config holds the decoder's configurable limits (spec §6).
type Config struct {
	MaxInitialLine    int
	MaxHeaderBytes    int
	MaxChunkSize      int
	ChunkedSupported  bool
	ValidateHeaders   bool
	InitialBufferSize int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxInitialLine:    4096,
		MaxHeaderBytes:    8192,
		MaxChunkSize:      8192,
		ChunkedSupported:  true,
		ValidateHeaders:   true,
		InitialBufferSize: 128,
	}
}

type state uint8

const (
	stSkipControl state = iota
	stReadInitial
	stReadHeader
	stReadVariableContent
	stReadFixedContent
	stReadChunkSize
	stReadChunkedContent
	stReadChunkDelimiter
	stReadChunkFooter
	stBadMessage
	stUpgraded
)

// Decoder is the resumable HTTP/1.x byte-stream state machine of spec §4.1.
// A Decoder instance is created per connection; it retains partial-message
// state between Decode calls and resets after each complete message or on
// fatal error.
type Decoder struct {
	cfg  Config
	role Role

	st   state
	line []byte // line accumulator for line-based states

	cur             *Message
	headerBytes     int // cumulative bytes seen for the current header section
	remaining       int64
	chunkTrailer    *header.Values
	resetPending    bool
	upgradeDetected bool

	// methodQueue tracks outstanding request methods for client-role
	// decoders, so that a HEAD/CONNECT response can be classified
	// always-empty-body regardless of its own headers (spec §4.1 priority
	// item 1, §9 note (c)).
	methodQueue []string
}

// NewDecoder constructs a Decoder for the given role and configuration.
func NewDecoder(role Role, cfg Config) *Decoder {
	d := &Decoder{cfg: cfg, role: role, st: stSkipControl}
	d.line = make([]byte, 0, cfg.InitialBufferSize)
	return d
}

// PushRequestMethod records that a request with the given method was just
// sent (client role only); used to resolve response body framing for
// HEAD/CONNECT exchanges.
func (d *Decoder) PushRequestMethod(method string) {
	d.methodQueue = append(d.methodQueue, method)
}

func (d *Decoder) popRequestMethod() string {
	if len(d.methodQueue) == 0 {
		return ""
	}
	m := d.methodQueue[0]
	d.methodQueue = d.methodQueue[1:]
	return m
}

// Reset schedules a state flush to be performed before the next Decode call,
// used to recover from a rejected Expect: 100-continue or an aborted
// bad-message absorption (spec §4.1).
func (d *Decoder) Reset() {
	d.resetPending = true
}

func (d *Decoder) resetForNextMessage() {
	d.st = stSkipControl
	d.line = d.line[:0]
	d.cur = nil
	d.headerBytes = 0
	d.remaining = 0
	d.chunkTrailer = nil
	d.resetPending = false
}

// Decode consumes a prefix of in and appends events to sink. It returns
// without error once insufficient bytes remain; partial state is retained
// for the next call. It returns a non-nil error for ErrLineTooLong and
// ErrHeaderSectionTooLong (each also delivered as a failure message),
// ErrChunkedNotSupported, ErrBadChunkSize, and ErrMalformedHeader for a
// malformed trailer section. Other malformed initial-line and header
// failures surface as a message carrying a failure DecodeResult, with no Go
// error. ErrPrematureClose is reported by Close, not by Decode.
func (d *Decoder) Decode(in buf.Buffer, sink EventSink) error {
	if d.resetPending {
		d.resetForNextMessage()
	}
	for {
		progressed, err := d.step(in, sink)
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// Close signals connection close to the decoder, resolving end-of-stream
// semantics (spec §4.1 "End-of-stream handling at connection close").
func (d *Decoder) Close(sink EventSink) error {
	switch d.st {
	case stReadVariableContent:
		sink.OnLastChunk(buf.FromBytes(nil), nil)
		d.resetForNextMessage()
		return nil
	case stSkipControl, stBadMessage, stUpgraded:
		return nil
	case stReadInitial, stReadHeader:
		// No message-start has been emitted yet, so close is reportable as a
		// synthetic failure message, matching the malformed-initial-line and
		// malformed-header cases.
		d.emitFailure(sink, CausePrematureClose)
		d.st = stBadMessage
		return ErrPrematureClose
	default:
		// A message-start was already emitted; the body simply never
		// finished. No synthetic message to emit, just the hard error.
		d.st = stBadMessage
		return ErrPrematureClose
	}
}

func (d *Decoder) step(in buf.Buffer, sink EventSink) (bool, error) {
	switch d.st {
	case stSkipControl:
		return d.stepSkipControl(in)
	case stReadInitial:
		return d.stepReadInitial(in, sink)
	case stReadHeader:
		return d.stepReadHeader(in, sink)
	case stReadVariableContent:
		return d.stepReadVariableContent(in, sink)
	case stReadFixedContent:
		return d.stepReadFixedContent(in, sink)
	case stReadChunkSize:
		return d.stepReadChunkSize(in, sink)
	case stReadChunkedContent:
		return d.stepReadChunkedContent(in, sink)
	case stReadChunkDelimiter:
		return d.stepReadChunkDelimiter(in)
	case stReadChunkFooter:
		return d.stepReadChunkFooter(in, sink)
	case stBadMessage:
		// Absorbing state: discard everything until an external Reset().
		n := in.ReadableBytes()
		if n == 0 {
			return false, nil
		}
		in.Discard(n)
		return false, nil
	case stUpgraded:
		return d.stepUpgraded(in, sink)
	default:
		return false, nil
	}
}

func (d *Decoder) stepSkipControl(in buf.Buffer) (bool, error) {
	progressed := false
	for in.ReadableBytes() > 0 {
		b := in.Bytes()[0]
		if b == '\r' || b == '\n' {
			in.Discard(1)
			progressed = true
			continue
		}
		d.st = stReadInitial
		d.line = d.line[:0]
		return true, nil
	}
	return progressed, nil
}

// readLine attempts to extract one CRLF-terminated line (CRLF stripped) from
// in, accumulating across calls in d.line. Returns ok=true with the
// accumulated line when a terminator is found. limit bounds the accumulated
// line length (a bare LF without CR is accepted as a terminator too, to
// tolerate lenient peers, matching the teacher's line scanning).
func (d *Decoder) readLine(in buf.Buffer, limit int) (line []byte, ok bool, tooLong bool) {
	for in.ReadableBytes() > 0 {
		b, _ := in.ReadByte()
		if b == '\n' {
			l := d.line
			if n := len(l); n > 0 && l[n-1] == '\r' {
				l = l[:n-1]
			}
			d.line = d.line[:0]
			return l, true, false
		}
		d.line = append(d.line, b)
		if len(d.line) > limit {
			return nil, false, true
		}
	}
	return nil, false, false
}

func parseHTTPVersion(s []byte) (major, minor int, ok bool) {
	if !bytes.HasPrefix(s, []byte("HTTP/")) || len(s) != len("HTTP/1.1") {
		return 0, 0, false
	}
	if s[6] != '.' {
		return 0, 0, false
	}
	if s[5] < '0' || s[5] > '9' || s[7] < '0' || s[7] > '9' {
		return 0, 0, false
	}
	return int(s[5] - '0'), int(s[7] - '0'), true
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func (d *Decoder) stepReadInitial(in buf.Buffer, sink EventSink) (bool, error) {
	line, ok, tooLong := d.readLine(in, d.cfg.MaxInitialLine)
	if tooLong {
		d.emitFailure(sink, CauseLineTooLong)
		d.st = stBadMessage
		return false, ErrLineTooLong
	}
	if !ok {
		return false, nil
	}

	m := &Message{}
	var err error
	if d.role == RoleServer {
		err = d.parseRequestLine(m, line)
	} else {
		err = d.parseStatusLine(m, line)
	}
	if err != nil {
		d.emitFailure(sink, CauseMalformedInitialLine)
		d.st = stBadMessage
		return false, nil
	}

	d.cur = m
	d.headerBytes = 0
	d.st = stReadHeader
	return true, nil
}

func (d *Decoder) parseRequestLine(m *Message, line []byte) error {
	line = trimSpace(line)
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrMalformedInitialLine
	}
	method := line[:sp1]
	rest := bytes.TrimLeft(line[sp1+1:], " ")
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return ErrMalformedInitialLine
	}
	target := rest[:sp2]
	protoBytes := bytes.TrimLeft(rest[sp2+1:], " ")
	major, minor, ok := parseHTTPVersion(protoBytes)
	if !ok {
		return ErrMalformedInitialLine
	}

	m.Kind = KindRequest
	m.Method = string(method)
	m.Target = string(target)
	m.ProtoMajor = major
	m.ProtoMinor = minor
	return nil
}

func (d *Decoder) parseStatusLine(m *Message, line []byte) error {
	line = trimSpace(line)
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrMalformedInitialLine
	}
	protoBytes := line[:sp1]
	major, minor, ok := parseHTTPVersion(protoBytes)
	if !ok {
		return ErrMalformedInitialLine
	}
	rest := bytes.TrimLeft(line[sp1+1:], " ")

	var statusBytes, reasonBytes []byte
	if sp2 := bytes.IndexByte(rest, ' '); sp2 >= 0 {
		statusBytes = rest[:sp2]
		reasonBytes = bytes.TrimLeft(rest[sp2+1:], " ")
	} else {
		statusBytes = rest
	}
	if len(statusBytes) != 3 {
		return ErrMalformedInitialLine
	}
	status, err := strconv.Atoi(string(statusBytes))
	if err != nil || status < 100 || status > 999 {
		return ErrMalformedInitialLine
	}

	m.Kind = KindResponse
	m.ProtoMajor = major
	m.ProtoMinor = minor
	m.StatusCode = status
	m.Reason = string(reasonBytes)
	return nil
}

func (d *Decoder) stepReadHeader(in buf.Buffer, sink EventSink) (bool, error) {
	line, ok, tooLong := d.readLine(in, d.cfg.MaxHeaderBytes-d.headerBytes)
	if tooLong {
		d.emitFailure(sink, CauseHeaderSectionTooLong)
		d.st = stBadMessage
		return false, ErrHeaderSectionTooLong
	}
	if !ok {
		return false, nil
	}
	d.headerBytes += len(line) + 2
	if d.headerBytes > d.cfg.MaxHeaderBytes {
		d.emitFailure(sink, CauseHeaderSectionTooLong)
		d.st = stBadMessage
		return false, ErrHeaderSectionTooLong
	}

	if len(line) == 0 {
		return true, d.finishHeaders(sink)
	}

	if line[0] == ' ' || line[0] == '\t' {
		// obs-fold continuation (spec §9 Open Question (a)): fold into the
		// previous header's value with a single space separator.
		if err := d.cur.Header.AppendToLast(string(trimSpace(line))); err != nil {
			d.emitFailure(sink, CauseMalformedHeader)
			d.st = stBadMessage
			return false, nil
		}
		return true, nil
	}

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		d.emitFailure(sink, CauseMalformedHeader)
		d.st = stBadMessage
		return false, nil
	}
	name := line[:colon]
	if name[len(name)-1] == ' ' || name[len(name)-1] == '\t' {
		// RFC 7230 §3.2: no whitespace between field name and colon.
		d.emitFailure(sink, CauseMalformedHeader)
		d.st = stBadMessage
		return false, nil
	}
	value := trimSpace(line[colon+1:])
	if err := d.cur.Header.Add(string(name), string(value)); err != nil {
		d.emitFailure(sink, CauseMalformedHeader)
		d.st = stBadMessage
		return false, nil
	}
	return true, nil
}

// finishHeaders resolves body framing per spec §4.1's priority list and
// emits the message-start event.
func (d *Decoder) finishHeaders(sink EventSink) error {
	m := d.cur

	teValues := m.Header.GetAll(headerTransferEncoding)
	hasTE := len(teValues) > 0
	clValues := m.Header.GetAll(headerContentLength)
	hasCL := len(clValues) > 0

	if hasTE && hasCL {
		d.emitFailure(sink, CauseMalformedHeader)
		d.st = stBadMessage
		return nil
	}

	var contentLength int64 = -1
	if hasCL {
		for _, v := range clValues[1:] {
			if v != clValues[0] {
				d.emitFailure(sink, CauseMalformedHeader)
				d.st = stBadMessage
				return nil
			}
		}
		n, err := strconv.ParseInt(clValues[0], 10, 64)
		if err != nil || n < 0 {
			d.emitFailure(sink, CauseMalformedHeader)
			d.st = stBadMessage
			return nil
		}
		contentLength = n
	}

	isChunked := m.Header.HasToken(headerTransferEncoding, tokenChunked)
	m.keepAlive = d.resolveKeepAlive(m)

	var reqMethod string
	if d.role == RoleClient {
		reqMethod = d.popRequestMethod()
	} else {
		reqMethod = m.Method
	}
	m.noBody = IsAlwaysEmptyBody(m.Kind, m.StatusCode, m.ProtoMajor, m.ProtoMinor, reqMethod)

	m.Result = DecodeResult{Success: true}
	sink.OnMessageStart(m)

	switch {
	case m.noBody:
		sink.OnLastChunk(buf.FromBytes(nil), nil)
		d.afterMessageComplete(m)
	case isChunked:
		if !d.cfg.ChunkedSupported {
			d.st = stBadMessage
			return ErrChunkedNotSupported
		}
		d.st = stReadChunkSize
	case contentLength >= 0:
		d.remaining = contentLength
		if d.remaining == 0 {
			sink.OnLastChunk(buf.FromBytes(nil), nil)
			d.afterMessageComplete(m)
		} else {
			d.st = stReadFixedContent
		}
	case d.role == RoleServer:
		sink.OnLastChunk(buf.FromBytes(nil), nil)
		d.afterMessageComplete(m)
	default:
		d.st = stReadVariableContent
	}
	return nil
}

// afterMessageComplete resets to await the next message, unless the just
// completed message was a 101 upgrade response, in which case the decoder
// switches to opaque passthrough (spec §4.1 "Protocol-switch detection").
func (d *Decoder) afterMessageComplete(m *Message) {
	if m.Kind == KindResponse && m.StatusCode == 101 && upgradesProtocol(m) {
		d.upgradeDetected = true
		d.st = stUpgraded
		d.line = d.line[:0]
		d.cur = nil
		return
	}
	d.resetForNextMessage()
}

func upgradesProtocol(m *Message) bool {
	up, ok := m.Header.Get(headerUpgrade)
	if !ok {
		return false
	}
	up = strings.ToUpper(up)
	return !strings.Contains(up, "HTTP/1.0") && !strings.Contains(up, "HTTP/1.1")
}

func (d *Decoder) resolveKeepAlive(m *Message) bool {
	if m.Header.HasToken(headerConnection, tokenClose) {
		return false
	}
	if m.ProtoMajor == 1 && m.ProtoMinor == 0 {
		return m.Header.HasToken(headerConnection, "keep-alive")
	}
	return true
}

func (d *Decoder) stepReadVariableContent(in buf.Buffer, sink EventSink) (bool, error) {
	n := in.ReadableBytes()
	if n == 0 {
		return false, nil
	}
	if n > d.cfg.MaxChunkSize {
		n = d.cfg.MaxChunkSize
	}
	slice, err := in.Slice(n)
	if err != nil {
		return false, nil
	}
	sink.OnChunk(slice)
	return true, nil
}

func (d *Decoder) stepReadFixedContent(in buf.Buffer, sink EventSink) (bool, error) {
	avail := in.ReadableBytes()
	if avail == 0 {
		return false, nil
	}
	n := avail
	if int64(n) > d.remaining {
		n = int(d.remaining)
	}
	if n > d.cfg.MaxChunkSize {
		n = d.cfg.MaxChunkSize
	}
	slice, err := in.Slice(n)
	if err != nil {
		return false, nil
	}
	d.remaining -= int64(n)
	if d.remaining == 0 {
		m := d.cur
		sink.OnLastChunk(slice, nil)
		d.afterMessageComplete(m)
	} else {
		sink.OnChunk(slice)
	}
	return true, nil
}

func (d *Decoder) stepReadChunkSize(in buf.Buffer, sink EventSink) (bool, error) {
	line, ok, tooLong := d.readLine(in, 64)
	if tooLong {
		d.st = stBadMessage
		return false, ErrBadChunkSize
	}
	if !ok {
		return false, nil
	}
	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = trimSpace(line)
	if len(line) == 0 {
		d.st = stBadMessage
		return false, ErrBadChunkSize
	}
	var size int64
	for _, b := range line {
		var v int64
		switch {
		case b >= '0' && b <= '9':
			v = int64(b - '0')
		case b >= 'a' && b <= 'f':
			v = int64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			v = int64(b-'A') + 10
		default:
			d.st = stBadMessage
			return false, ErrBadChunkSize
		}
		size = size*16 + v
		if size > int64(d.cfg.MaxChunkSize) {
			d.st = stBadMessage
			return false, ErrBadChunkSize
		}
	}
	d.remaining = size
	if size == 0 {
		d.st = stReadChunkFooter
	} else {
		d.st = stReadChunkedContent
	}
	return true, nil
}

func (d *Decoder) stepReadChunkedContent(in buf.Buffer, sink EventSink) (bool, error) {
	avail := in.ReadableBytes()
	if avail == 0 {
		return false, nil
	}
	n := avail
	if int64(n) > d.remaining {
		n = int(d.remaining)
	}
	if n > d.cfg.MaxChunkSize {
		n = d.cfg.MaxChunkSize
	}
	slice, err := in.Slice(n)
	if err != nil {
		return false, nil
	}
	d.remaining -= int64(n)
	sink.OnChunk(slice)
	if d.remaining == 0 {
		d.st = stReadChunkDelimiter
	}
	return true, nil
}

func (d *Decoder) stepReadChunkDelimiter(in buf.Buffer) (bool, error) {
	line, ok, tooLong := d.readLine(in, 2)
	if tooLong {
		d.st = stBadMessage
		return false, ErrBadChunkSize
	}
	if !ok {
		return false, nil
	}
	if len(line) != 0 {
		d.st = stBadMessage
		return false, ErrBadChunkSize
	}
	d.st = stReadChunkSize
	return true, nil
}

func (d *Decoder) stepReadChunkFooter(in buf.Buffer, sink EventSink) (bool, error) {
	line, ok, tooLong := d.readLine(in, d.cfg.MaxHeaderBytes)
	if tooLong {
		d.st = stBadMessage
		return false, ErrHeaderSectionTooLong
	}
	if !ok {
		return false, nil
	}
	if len(line) == 0 {
		m := d.cur
		trailer := d.chunkTrailer
		sink.OnLastChunk(buf.FromBytes(nil), trailer)
		d.afterMessageComplete(m)
		return true, nil
	}

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		d.st = stBadMessage
		return false, ErrMalformedHeader
	}
	name := string(line[:colon])
	value := string(trimSpace(line[colon+1:]))
	if strings.EqualFold(name, headerContentLength) ||
		strings.EqualFold(name, headerTransferEncoding) ||
		strings.EqualFold(name, headerTrailer) {
		d.st = stBadMessage
		return false, ErrMalformedHeader
	}
	if d.chunkTrailer == nil {
		d.chunkTrailer = &header.Values{}
	}
	if err := d.chunkTrailer.Add(name, value); err != nil {
		d.st = stBadMessage
		return false, ErrMalformedHeader
	}
	return true, nil
}

func (d *Decoder) stepUpgraded(in buf.Buffer, sink EventSink) (bool, error) {
	n := in.ReadableBytes()
	if n == 0 {
		return false, nil
	}
	slice, err := in.Slice(n)
	if err != nil {
		return false, nil
	}
	sink.OnChunk(slice)
	return true, nil
}

func (d *Decoder) emitFailure(sink EventSink, cause Cause) {
	m := d.cur
	if m == nil {
		m = &Message{}
	}
	m.Result = DecodeResult{Success: false, Cause: cause, Err: causeError(cause)}
	sink.OnMessageStart(m)
	sink.OnLastChunk(buf.FromBytes(nil), nil)
}

// IsAlwaysEmptyBody resolves spec §4.1 priority item 1 and §9 note (c): a
// response is always empty-bodied for 1xx, 204, 304, for any response to a
// HEAD request, and for a 2xx response to CONNECT. Requests are never
// always-empty by this rule (their body length instead falls out of the
// remaining priority list items).
func IsAlwaysEmptyBody(kind Kind, statusCode, major, minor int, requestMethod string) bool {
	if kind != KindResponse {
		return false
	}
	if strings.EqualFold(requestMethod, MethodHEAD) {
		return true
	}
	if strings.EqualFold(requestMethod, MethodCONNECT) && statusCode >= 200 && statusCode < 300 {
		return true
	}
	if statusCode < 200 || statusCode == 204 || statusCode == 304 {
		return true
	}
	return false
}
