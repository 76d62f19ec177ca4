package websocket

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
)

// gatherWriteThreshold is spec.md §4.5's boundary above which an unmasked
// payload is emitted as a separate buffer instead of being copied into the
// header buffer.
const gatherWriteThreshold = 1024

// EncoderConfig holds the frame encoder's tunables.
type EncoderConfig struct {
	// Masked selects whether outgoing frames carry a mask key — true for a
	// client-role encoder, false for a server-role one (RFC 6455 §5.1:
	// only client-to-server frames are masked).
	Masked bool
}

// DefaultEncoderConfig returns the server-role default (no masking).
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{Masked: false}
}

// Encoder is the frame serializer of spec.md §4.5. It owns one PRNG
// instance, matching spec §5's "one-per-encoder" masking-key resource rule.
type Encoder struct {
	cfg  EncoderConfig
	rand io.Reader
}

// NewEncoder constructs an Encoder. rng defaults to crypto/rand.Reader when
// nil; a caller supplies its own only for deterministic tests.
func NewEncoder(cfg EncoderConfig, rng io.Reader) *Encoder {
	if rng == nil {
		rng = rand.Reader
	}
	return &Encoder{cfg: cfg, rand: rng}
}

// EncodeFrame writes opcode/fin/payload as a single frame into out. It
// reports gather=true when out received only the header and payload must
// be written to the transport separately next (spec.md §4.5's gather-write
// rule: unmasked payloads ≥1024 bytes are never copied into the header
// buffer). When gather is false, the full frame (header plus payload, masked
// in place if this encoder masks) has already been written to out.
func (e *Encoder) EncodeFrame(out buf.Buffer, opcode byte, fin bool, payload []byte) (gather bool, err error) {
	if isControlOpcode(opcode) && len(payload) > MaxControlFramePayload {
		return false, ErrControlFrameTooLarge
	}

	var header [MaxFrameHeaderSize]byte
	n := 2

	b0 := opcode
	if fin {
		b0 |= 0x80
	}
	header[0] = b0

	length := len(payload)
	b1 := byte(0)
	if e.cfg.Masked {
		b1 |= 0x80
	}

	switch {
	case length <= 125:
		header[1] = b1 | byte(length)
	case length <= 0xFFFF:
		header[1] = b1 | 126
		binary.BigEndian.PutUint16(header[2:4], uint16(length))
		n = 4
	default:
		header[1] = b1 | 127
		binary.BigEndian.PutUint64(header[2:10], uint64(length))
		n = 10
	}

	var maskKey [4]byte
	if e.cfg.Masked {
		if _, err := io.ReadFull(e.rand, maskKey[:]); err != nil {
			return false, err
		}
		copy(header[n:n+4], maskKey[:])
		n += 4
	}

	if _, err := out.Write(header[:n]); err != nil {
		return false, err
	}

	if length == 0 {
		return false, nil
	}

	if e.cfg.Masked {
		masked := append([]byte(nil), payload...)
		maskBytes(masked, maskKey)
		_, err := out.Write(masked)
		return false, err
	}

	if length >= gatherWriteThreshold {
		return true, nil
	}

	_, err = out.Write(payload)
	return false, err
}

// EncodeText writes a TEXT frame.
func (e *Encoder) EncodeText(out buf.Buffer, data []byte, fin bool) (bool, error) {
	return e.EncodeFrame(out, OpcodeText, fin, data)
}

// EncodeBinary writes a BINARY frame.
func (e *Encoder) EncodeBinary(out buf.Buffer, data []byte, fin bool) (bool, error) {
	return e.EncodeFrame(out, OpcodeBinary, fin, data)
}

// EncodePing writes a PING control frame.
func (e *Encoder) EncodePing(out buf.Buffer, data []byte) error {
	_, err := e.EncodeFrame(out, OpcodePing, true, data)
	return err
}

// EncodePong writes a PONG control frame.
func (e *Encoder) EncodePong(out buf.Buffer, data []byte) error {
	_, err := e.EncodeFrame(out, OpcodePong, true, data)
	return err
}

// EncodeClose writes a CLOSE control frame with an optional status code and
// reason. code == 0 writes a bodyless CLOSE.
func (e *Encoder) EncodeClose(out buf.Buffer, code uint16, reason string) error {
	var payload []byte
	if code != 0 {
		payload = make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload, code)
		copy(payload[2:], reason)
	}
	_, err := e.EncodeFrame(out, OpcodeClose, true, payload)
	return err
}
