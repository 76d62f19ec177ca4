package http1

import (
	"strconv"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/header"
)

// EncoderConfig holds the encoder's tunables (spec §6, §4.2).
type EncoderConfig struct {
	// EMAAlpha is the smoothing factor for the header-size moving average
	// used to pre-size the next message's output buffer.
	EMAAlpha float64
	// InitialHeaderSize seeds the moving average before any message has
	// been encoded.
	InitialHeaderSize int
}

// DefaultEncoderConfig returns the spec's documented defaults.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{EMAAlpha: 0.2, InitialHeaderSize: 256}
}

type bodyFraming uint8

const (
	framingNone bodyFraming = iota
	framingFixed
	framingChunked
	framingCloseDelimited
)

type encState uint8

const (
	encAwaitStart encState = iota
	encBody
	// encAlwaysEmpty is entered instead of encAwaitStart when the message
	// just started is classified as always-empty-body (spec.md:93-99):
	// the caller may still drive EncodeChunk/EncodeLastChunk for it (the
	// Decoder's counterpart emits them unconditionally), and those calls
	// must be silently dropped rather than rejected.
	encAlwaysEmpty
)

// Encoder is the resumable HTTP/1.x message-to-bytes state machine of spec
// §4.2: it accepts the same event shape the Decoder emits (message-start,
// chunk, last-chunk) and serializes each into wire bytes appended to a
// caller-supplied output Buffer.
type Encoder struct {
	cfg EncoderConfig

	st      encState
	framing bodyFraming
	remain  int64 // bytes still owed under framingFixed

	emaHeaderSize float64
}

// NewEncoder constructs an Encoder with the given configuration.
func NewEncoder(cfg EncoderConfig) *Encoder {
	return &Encoder{cfg: cfg, st: encAwaitStart, emaHeaderSize: float64(cfg.InitialHeaderSize)}
}

// EncodeMessageStart serializes the initial line and header section of m
// into out. reqMethod names the request method this message answers
// (ignored for requests; used for responses to resolve the always-empty-body
// rule for HEAD/CONNECT, matching Decoder's IsAlwaysEmptyBody). A Grower out
// is pre-sized from the encoder's header-size moving average.
func (e *Encoder) EncodeMessageStart(out buf.Buffer, m *Message, reqMethod string) error {
	if e.st != encAwaitStart {
		return ErrUnexpectedMessage
	}

	if g, ok := out.(buf.Grower); ok {
		g.Grow(int(e.emaHeaderSize))
	}

	noBody := IsAlwaysEmptyBody(m.Kind, m.StatusCode, m.ProtoMajor, m.ProtoMinor, reqMethod)
	e.sanitizeFraming(m, noBody)

	start := len(out.Bytes())
	if err := e.writeInitialLine(out, m); err != nil {
		return err
	}
	if err := e.writeHeaders(out, m); err != nil {
		return err
	}
	written := len(out.Bytes()) - start
	e.emaHeaderSize = e.cfg.EMAAlpha*float64(written) + (1-e.cfg.EMAAlpha)*e.emaHeaderSize

	switch {
	case noBody:
		e.framing = framingNone
		e.st = encAlwaysEmpty
	case m.Header.HasToken(headerTransferEncoding, tokenChunked):
		e.framing = framingChunked
		e.st = encBody
	case m.Header.Has(headerContentLength):
		cl, _ := m.Header.Get(headerContentLength)
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return ErrMalformedHeader
		}
		e.framing = framingFixed
		e.remain = n
		e.st = encBody
	default:
		e.framing = framingCloseDelimited
		e.st = encBody
	}
	return nil
}

// sanitizeFraming is spec §4.2's sanitization hook: a message classified as
// always-empty-body must not carry Content-Length or Transfer-Encoding, and
// a message the caller left without explicit framing headers is given
// Transfer-Encoding: chunked for HTTP/1.1, or left close-delimited for
// HTTP/1.0 (which cannot express chunked framing).
func (e *Encoder) sanitizeFraming(m *Message, noBody bool) {
	if noBody {
		m.Header.Del(headerContentLength)
		m.Header.Del(headerTransferEncoding)
		return
	}
	hasCL := m.Header.Has(headerContentLength)
	hasTE := m.Header.Has(headerTransferEncoding)
	if hasCL || hasTE {
		return
	}
	if m.ProtoMajor == 1 && m.ProtoMinor == 1 {
		m.Header.Set(headerTransferEncoding, tokenChunked)
	} else {
		m.Header.Set(headerConnection, tokenClose)
	}
}

func (e *Encoder) writeInitialLine(out buf.Buffer, m *Message) error {
	var line string
	if m.Kind == KindRequest {
		line = m.Method + " " + m.Target + " " + m.Proto() + "\r\n"
	} else {
		reason := m.Reason
		if reason == "" {
			reason = ReasonPhrase(m.StatusCode)
		}
		line = m.Proto() + " " + strconv.Itoa(m.StatusCode) + " " + reason + "\r\n"
	}
	_, err := out.Write([]byte(line))
	return err
}

func (e *Encoder) writeHeaders(out buf.Buffer, m *Message) error {
	var failed error
	m.Header.VisitAll(func(name, value string) bool {
		if _, err := out.Write([]byte(name)); err != nil {
			failed = err
			return false
		}
		if _, err := out.Write([]byte(": ")); err != nil {
			failed = err
			return false
		}
		if _, err := out.Write([]byte(value)); err != nil {
			failed = err
			return false
		}
		if _, err := out.Write([]byte("\r\n")); err != nil {
			failed = err
			return false
		}
		return true
	})
	if failed != nil {
		return failed
	}
	_, err := out.Write([]byte("\r\n"))
	return err
}

// EncodeChunk serializes a non-terminal body chunk into out, framing it as a
// chunk-size line under framingChunked or writing it verbatim otherwise.
func (e *Encoder) EncodeChunk(out buf.Buffer, data []byte) error {
	if e.st == encAlwaysEmpty {
		return nil
	}
	if e.st != encBody {
		return ErrUnexpectedMessage
	}
	if len(data) == 0 {
		return nil
	}
	switch e.framing {
	case framingNone:
		return ErrUnexpectedMessage
	case framingChunked:
		return e.writeChunkFrame(out, data)
	case framingFixed:
		if int64(len(data)) > e.remain {
			return ErrUnexpectedMessage
		}
		e.remain -= int64(len(data))
		_, err := out.Write(data)
		return err
	default: // framingCloseDelimited
		_, err := out.Write(data)
		return err
	}
}

// EncodeLastChunk serializes the terminal body chunk (which may itself carry
// data) and closes out the message framing, writing the chunked terminator
// and any trailers when applicable.
func (e *Encoder) EncodeLastChunk(out buf.Buffer, data []byte, trailer *header.Values) error {
	if e.st == encAlwaysEmpty {
		e.st = encAwaitStart
		return nil
	}
	if e.st != encBody {
		return ErrUnexpectedMessage
	}

	switch e.framing {
	case framingChunked:
		if len(data) > 0 {
			if err := e.writeChunkFrame(out, data); err != nil {
				return err
			}
		}
		if _, err := out.Write([]byte("0\r\n")); err != nil {
			return err
		}
		if trailer != nil {
			var failed error
			trailer.VisitAll(func(name, value string) bool {
				if _, err := out.Write([]byte(name + ": " + value + "\r\n")); err != nil {
					failed = err
					return false
				}
				return true
			})
			if failed != nil {
				return failed
			}
		}
		if _, err := out.Write([]byte("\r\n")); err != nil {
			return err
		}
	case framingFixed:
		if int64(len(data)) != e.remain {
			return ErrUnexpectedMessage
		}
		if len(data) > 0 {
			if _, err := out.Write(data); err != nil {
				return err
			}
		}
		e.remain = 0
	case framingCloseDelimited:
		if len(data) > 0 {
			if _, err := out.Write(data); err != nil {
				return err
			}
		}
	case framingNone:
		if len(data) != 0 {
			return ErrUnexpectedMessage
		}
	}

	e.st = encAwaitStart
	e.framing = framingNone
	return nil
}

func (e *Encoder) writeChunkFrame(out buf.Buffer, data []byte) error {
	size := strconv.FormatInt(int64(len(data)), 16)
	if _, err := out.Write([]byte(size + "\r\n")); err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	_, err := out.Write([]byte("\r\n"))
	return err
}
