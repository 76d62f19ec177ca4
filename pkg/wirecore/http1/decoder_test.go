package http1

import (
	"testing"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/header"
)

type recordedMessage struct {
	msg    *Message
	chunks [][]byte
	last   []byte
	trailer *header.Values
	done   bool
}

type recordingSink struct {
	messages []*recordedMessage
	cur      *recordedMessage
}

func (s *recordingSink) OnMessageStart(m *Message) {
	s.cur = &recordedMessage{msg: m}
	s.messages = append(s.messages, s.cur)
}

func (s *recordingSink) OnChunk(data buf.Buffer) {
	b := append([]byte(nil), data.Bytes()...)
	data.Release()
	s.cur.chunks = append(s.cur.chunks, b)
}

func (s *recordingSink) OnLastChunk(data buf.Buffer, trailer *header.Values) {
	b := append([]byte(nil), data.Bytes()...)
	data.Release()
	s.cur.last = b
	s.cur.trailer = trailer
	s.cur.done = true
}

func TestDecodeSimpleGET(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	in := buf.FromBytes([]byte(raw))

	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	rm := sink.messages[0]
	if !rm.msg.Result.Success {
		t.Fatalf("message decode failed: %v", rm.msg.Result.Err)
	}
	if rm.msg.Method != MethodGET || rm.msg.Target != "/index.html" {
		t.Errorf("got method=%q target=%q", rm.msg.Method, rm.msg.Target)
	}
	host, ok := rm.msg.Header.Get("Host")
	if !ok || host != "example.com" {
		t.Errorf("Host header = %q, %v", host, ok)
	}
	if !rm.done || len(rm.last) != 0 {
		t.Errorf("expected empty completed body, got done=%v last=%q", rm.done, rm.last)
	}
}

func TestDecodeChunkedPOSTAcrossFragments(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "POST /upload HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

	// Feed the stream one byte at a time to exercise resumability.
	for i := 0; i < len(raw); i++ {
		in := buf.FromBytes([]byte{raw[i]})
		if err := d.Decode(in, &sink); err != nil {
			t.Fatalf("Decode() at byte %d error = %v", i, err)
		}
	}

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	rm := sink.messages[0]
	if !rm.msg.Result.Success {
		t.Fatalf("decode failed: %v", rm.msg.Result.Err)
	}
	if !rm.done {
		t.Fatalf("message never completed")
	}
	got := string(concat(rm.chunks)) + string(rm.last)
	if got != "Wikipedia" {
		t.Errorf("body = %q, want %q", got, "Wikipedia")
	}
}

func concat(chunks [][]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestDecodeContentLengthFixed(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rm := sink.messages[0]
	if !rm.done {
		t.Fatalf("message never completed")
	}
	if got := string(concat(rm.chunks)) + string(rm.last); got != "hello" {
		t.Errorf("body = %q, want %q", got, "hello")
	}
}

func TestDecodeRejectsConflictingContentLengthAndTransferEncoding(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"
	in := buf.FromBytes([]byte(raw))
	_ = d.Decode(in, &sink)

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	if sink.messages[0].msg.Result.Success {
		t.Fatalf("expected decode failure for smuggling-shaped request")
	}
	if sink.messages[0].msg.Result.Cause != CauseMalformedHeader {
		t.Errorf("cause = %v, want %v", sink.messages[0].msg.Result.Cause, CauseMalformedHeader)
	}
}

func TestDecodeObsFoldContinuation(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "GET / HTTP/1.1\r\nHost: h\r\nX-Long: part-one\r\n part-two\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rm := sink.messages[0]
	if !rm.msg.Result.Success {
		t.Fatalf("decode failed: %v", rm.msg.Result.Err)
	}
	v, ok := rm.msg.Header.Get("X-Long")
	if !ok || v != "part-one part-two" {
		t.Errorf("X-Long = %q, %v; want folded value", v, ok)
	}
}

func TestDecodeHeadResponseAlwaysEmptyBody(t *testing.T) {
	d := NewDecoder(RoleClient, DefaultConfig())
	d.PushRequestMethod(MethodHEAD)
	var sink recordingSink

	raw := "HTTP/1.1 200 OK\r\nContent-Length: 1234\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rm := sink.messages[0]
	if !rm.done || len(rm.last) != 0 || len(rm.chunks) != 0 {
		t.Errorf("expected immediately-complete empty body for HEAD response, got done=%v chunks=%d last=%q",
			rm.done, len(rm.chunks), rm.last)
	}
}

func TestDecode204ResponseAlwaysEmptyBody(t *testing.T) {
	d := NewDecoder(RoleClient, DefaultConfig())
	d.PushRequestMethod(MethodGET)
	var sink recordingSink

	raw := "HTTP/1.1 204 No Content\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !sink.messages[0].done {
		t.Fatalf("204 response did not complete immediately")
	}
}

func TestDecodeVariableLengthUntilClose(t *testing.T) {
	d := NewDecoder(RoleClient, DefaultConfig())
	d.PushRequestMethod(MethodGET)
	var sink recordingSink

	raw := "HTTP/1.0 200 OK\r\n\r\nhello world"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if sink.messages[0].done {
		t.Fatalf("variable-length body should not complete before Close()")
	}
	if err := d.Close(&sink); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sink.messages[0].done {
		t.Fatalf("Close() did not finalize the variable-length message")
	}
	got := string(concat(sink.messages[0].chunks)) + string(sink.messages[0].last)
	if got != "hello world" {
		t.Errorf("body = %q, want %q", got, "hello world")
	}
}

func TestDecodeMalformedInitialLineEntersBadMessage(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	in := buf.FromBytes([]byte("NOT A REQUEST LINE AT ALL\r\n\r\nGET / HTTP/1.1\r\n\r\n"))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0].msg.Result.Success {
		t.Fatalf("expected exactly one failure message, got %d messages", len(sink.messages))
	}
	if sink.messages[0].msg.Result.Cause != CauseMalformedInitialLine {
		t.Errorf("cause = %v, want %v", sink.messages[0].msg.Result.Cause, CauseMalformedInitialLine)
	}

	// The decoder stays in the absorbing state until explicitly reset, so
	// the pipelined second request must not be parsed.
	more := buf.FromBytes([]byte("more garbage"))
	if err := d.Decode(more, &sink); err != nil {
		t.Fatalf("Decode() after bad message error = %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("decoder should still be absorbing, got %d messages", len(sink.messages))
	}

	d.Reset()
	in2 := buf.FromBytes([]byte("GET /ok HTTP/1.1\r\nHost: h\r\n\r\n"))
	if err := d.Decode(in2, &sink); err != nil {
		t.Fatalf("Decode() after Reset error = %v", err)
	}
	if len(sink.messages) != 2 || !sink.messages[1].msg.Result.Success {
		t.Fatalf("expected a second, successful message after Reset")
	}
}

func TestDecodeChunkSizeExceedsLimitIsHardError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 16
	d := NewDecoder(RoleServer, cfg)
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\nFFFFFF\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != ErrBadChunkSize {
		t.Fatalf("Decode() error = %v, want ErrBadChunkSize", err)
	}
}

func TestDecodeChunkedUnsupportedIsHardError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkedSupported = false
	d := NewDecoder(RoleServer, cfg)
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != ErrChunkedNotSupported {
		t.Fatalf("Decode() error = %v, want ErrChunkedNotSupported", err)
	}
}

func TestDecodeChunkTrailers(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nfoo\r\n0\r\nX-Trailer: bar\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rm := sink.messages[0]
	if rm.trailer == nil {
		t.Fatalf("expected trailers, got nil")
	}
	v, ok := rm.trailer.Get("X-Trailer")
	if !ok || v != "bar" {
		t.Errorf("trailer X-Trailer = %q, %v", v, ok)
	}
}

func TestDecodeRejectsForbiddenTrailerName(t *testing.T) {
	d := NewDecoder(RoleServer, DefaultConfig())
	var sink recordingSink

	raw := "POST /f HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nfoo\r\n0\r\nContent-Length: 3\r\n\r\n"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != ErrMalformedHeader {
		t.Fatalf("Decode() error = %v, want ErrMalformedHeader", err)
	}
}

func TestDecodeProtocolSwitchPassthrough(t *testing.T) {
	d := NewDecoder(RoleClient, DefaultConfig())
	d.PushRequestMethod(MethodGET)
	var sink recordingSink

	raw := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n" +
		"opaque-frame-bytes"
	in := buf.FromBytes([]byte(raw))
	if err := d.Decode(in, &sink); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	if !d.upgradeDetected {
		t.Fatalf("expected upgradeDetected after 101 response")
	}
	if got := string(concat(sink.messages[0].chunks)); got != "opaque-frame-bytes" {
		t.Errorf("passthrough bytes = %q, want %q", got, "opaque-frame-bytes")
	}
}
