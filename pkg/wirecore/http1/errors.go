package http1

import "errors"

// Cause identifies why a message carries a failure decode-result, or why the
// decoder raised a hard framing error (spec §7). Matching error kinds are
// exposed as sentinel errors below so callers can use errors.Is without
// depending on this enum directly.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseLineTooLong
	CauseHeaderSectionTooLong
	CauseMalformedInitialLine
	CauseMalformedHeader
	CauseBadChunkSize
	CauseChunkedNotSupported
	CausePrematureClose
)

func (c Cause) String() string {
	switch c {
	case CauseLineTooLong:
		return "line-too-long"
	case CauseHeaderSectionTooLong:
		return "header-section-too-long"
	case CauseMalformedInitialLine:
		return "malformed-initial-line"
	case CauseMalformedHeader:
		return "malformed-header"
	case CauseBadChunkSize:
		return "bad-chunk-size"
	case CauseChunkedNotSupported:
		return "chunked-not-supported"
	case CausePrematureClose:
		return "premature-close"
	default:
		return "none"
	}
}

var (
	// ErrLineTooLong indicates the initial line exceeded maxInitialLine.
	ErrLineTooLong = errors.New("http1: initial line too long")

	// ErrHeaderSectionTooLong indicates the header section exceeded
	// maxHeaderBytes.
	ErrHeaderSectionTooLong = errors.New("http1: header section too long")

	// ErrMalformedInitialLine indicates the request/response line could not
	// be split into its required tokens.
	ErrMalformedInitialLine = errors.New("http1: malformed initial line")

	// ErrMalformedHeader indicates a header line without a ':' separator, an
	// invalid name/value, or (per RFC 7230 §3.3.3) conflicting
	// Content-Length / Transfer-Encoding headers.
	ErrMalformedHeader = errors.New("http1: malformed header")

	// ErrBadChunkSize indicates a chunk-size line that failed to parse as
	// hex, a declared chunk size exceeding maxChunkSize, or chunk data not
	// followed by CRLF.
	ErrBadChunkSize = errors.New("http1: bad chunk size")

	// ErrChunkedNotSupported indicates chunked transfer coding was seen
	// while the decoder is configured with ChunkedSupported=false.
	ErrChunkedNotSupported = errors.New("http1: chunked transfer encoding not supported")

	// ErrPrematureClose indicates the connection closed while a message was
	// only partially received.
	ErrPrematureClose = errors.New("http1: premature close")

	// ErrUnexpectedMessage indicates the encoder received an event that does
	// not match its current state (spec §4.2, §7).
	ErrUnexpectedMessage = errors.New("http1: unexpected message for encoder state")
)

// causeError maps a Cause to its sentinel error for propagation.
func causeError(c Cause) error {
	switch c {
	case CauseLineTooLong:
		return ErrLineTooLong
	case CauseHeaderSectionTooLong:
		return ErrHeaderSectionTooLong
	case CauseMalformedInitialLine:
		return ErrMalformedInitialLine
	case CauseMalformedHeader:
		return ErrMalformedHeader
	case CauseBadChunkSize:
		return ErrBadChunkSize
	case CauseChunkedNotSupported:
		return ErrChunkedNotSupported
	case CausePrematureClose:
		return ErrPrematureClose
	default:
		return nil
	}
}
