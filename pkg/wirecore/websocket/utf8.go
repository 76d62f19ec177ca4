package websocket

// utf8Validator is a streaming RFC 3629 UTF-8 acceptor, so a TEXT message's
// payload can be validated incrementally across its CONTINUATION frames
// (spec.md §4.4 "validated streaming: accept-state machine per RFC 3629")
// without buffering the whole message first. It is Bjoern Hoehrmann's
// byte-driven DFA: each input byte walks one state transition via two small
// lookup tables, and the accept state is reached exactly when a complete,
// well-formed code point has been consumed.
type utf8Validator struct {
	state byte
}

const (
	utf8Accept = 0
	utf8Reject = 12
)

var utf8ByteClass = [256]byte{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	10, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 4, 3, 3,
	11, 6, 6, 6, 5, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
}

var utf8StateTransition = [108]byte{
	0, 12, 24, 36, 60, 96, 84, 12, 12, 12, 48, 72,
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
	12, 0, 12, 12, 12, 12, 12, 0, 12, 0, 12, 12,
	12, 24, 12, 12, 12, 12, 12, 24, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 24, 12, 12, 12, 12,
	12, 24, 12, 12, 12, 12, 12, 12, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12,
	12, 36, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12,
	12, 36, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
}

// step consumes one byte, returning the new DFA state. utf8Accept (0) means
// a complete code point just finished; utf8Reject (12) means b cannot extend
// any valid UTF-8 sequence; any other value is a non-terminal "more
// continuation bytes expected" state.
func (v *utf8Validator) step(b byte) byte {
	class := utf8ByteClass[b]
	v.state = utf8StateTransition[int(v.state)+int(class)]
	return v.state
}

// write feeds p through the validator, returning false as soon as an invalid
// byte sequence is found. Call at the end of a logical message with final
// true to additionally require the DFA to have ended on a complete code
// point (no truncated multi-byte sequence left dangling).
func (v *utf8Validator) write(p []byte, final bool) bool {
	for _, b := range p {
		if v.step(b) == utf8Reject {
			return false
		}
	}
	if final && v.state != utf8Accept {
		return false
	}
	return true
}

// reset returns the validator to its initial accept state, for reuse across
// messages.
func (v *utf8Validator) reset() { v.state = utf8Accept }
