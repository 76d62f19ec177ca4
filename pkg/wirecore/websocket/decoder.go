package websocket

import (
	"encoding/binary"

	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
)

// Config holds the frame decoder's tunables (spec.md §4.4).
type Config struct {
	// ExpectMaskedFrames is true on a server (client-to-server frames must
	// be masked) and false on a client.
	ExpectMaskedFrames bool
	// AllowExtensions permits RSV1-3 to be set without treating it as a
	// protocol violation, for a connection that negotiated an extension.
	AllowExtensions bool
	// MaxFramePayloadLength bounds a single frame's declared length.
	MaxFramePayloadLength int64
	// AllowMaskMismatch disables the mask-flag-matches-direction check, for
	// interop with lenient peers.
	AllowMaskMismatch bool
}

// DefaultConfig returns the spec's documented server-side defaults.
func DefaultConfig() Config {
	return Config{
		ExpectMaskedFrames:     true,
		AllowExtensions:        false,
		MaxFramePayloadLength:  16 << 20,
		AllowMaskMismatch:      false,
	}
}

type state uint8

const (
	stReadingFirst state = iota
	stReadingSecond
	stReadingSize
	stMaskingKey
	stPayload
	stCorrupt
)

// Decoder is the resumable frame-level state machine of spec.md §4.4. One
// Decoder is installed per connection after a successful upgrade handshake;
// it retains partial-frame state between Decode calls the same way
// http1.Decoder retains partial-message state.
type Decoder struct {
	cfg Config
	pl  pipeline.Pipeline
	enc *Encoder

	st state

	fin              bool
	rsv1, rsv2, rsv3 bool
	opcode           byte
	masked           bool
	length7          byte

	sizeLen  int // 0 (resolved already), 2, or 8
	sizeBuf  []byte
	length   int64
	remaining int64

	maskKey [4]byte
	maskBuf []byte

	payloadAcc []byte

	// fragmented/fragOpcode track the in-progress message across
	// CONTINUATION frames (spec.md §4.4 "Fragmentation counter").
	fragmented bool
	fragOpcode byte

	closingReceived bool

	textValidator utf8Validator
}

// NewDecoder constructs a Decoder. enc is used to synthesize the 1002 Close
// frame spec.md §4.4 requires on a protocol violation; pl is where that
// frame is written (spec.md §5's pipeline port).
func NewDecoder(cfg Config, pl pipeline.Pipeline, enc *Encoder) *Decoder {
	return &Decoder{
		cfg:     cfg,
		pl:      pl,
		enc:     enc,
		st:      stReadingFirst,
		sizeBuf: make([]byte, 0, 8),
		maskBuf: make([]byte, 0, 4),
	}
}

// Decode consumes a prefix of in and emits complete frames to sink. It
// returns without error once insufficient bytes remain. A non-nil return is
// the frame-corruption error spec.md §4.4 calls for on a protocol violation;
// by the time it returns, the 1002 Close frame has already been written to
// pl and the decoder has transitioned to a discard-everything Corrupt state.
func (d *Decoder) Decode(in buf.Buffer, sink FrameSink) error {
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

func (d *Decoder) step(in buf.Buffer, sink FrameSink) (bool, error) {
	if d.closingReceived || d.st == stCorrupt {
		n := in.ReadableBytes()
		if n == 0 {
			return false, nil
		}
		in.Discard(n)
		return false, nil
	}
	switch d.st {
	case stReadingFirst:
		return d.stepFirst(in)
	case stReadingSecond:
		return d.stepSecond(in)
	case stReadingSize:
		return d.stepSize(in)
	case stMaskingKey:
		return d.stepMaskingKey(in)
	case stPayload:
		return d.stepPayload(in, sink)
	default:
		return false, nil
	}
}

func (d *Decoder) stepFirst(in buf.Buffer) (bool, error) {
	if in.ReadableBytes() == 0 {
		return false, nil
	}
	b, _ := in.ReadByte()
	d.fin = b&0x80 != 0
	d.rsv1 = b&0x40 != 0
	d.rsv2 = b&0x20 != 0
	d.rsv3 = b&0x10 != 0
	d.opcode = b & 0x0F
	d.st = stReadingSecond
	return true, nil
}

func (d *Decoder) stepSecond(in buf.Buffer) (bool, error) {
	if in.ReadableBytes() == 0 {
		return false, nil
	}
	b, _ := in.ReadByte()
	d.masked = b&0x80 != 0
	d.length7 = b & 0x7F

	if violation := d.validateHeader(); violation != nil {
		return false, d.violate(violation)
	}

	switch d.length7 {
	case 126:
		d.sizeLen = 2
		d.sizeBuf = d.sizeBuf[:0]
		d.st = stReadingSize
	case 127:
		d.sizeLen = 8
		d.sizeBuf = d.sizeBuf[:0]
		d.st = stReadingSize
	default:
		d.length = int64(d.length7)
		if err := d.afterLengthResolved(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// validateHeader applies every protocol-violation rule of spec.md §4.4 step
// 2 that can be decided from the first two header bytes alone.
func (d *Decoder) validateHeader() error {
	if (d.rsv1 || d.rsv2 || d.rsv3) && !d.cfg.AllowExtensions {
		return ErrReservedBitsSet
	}
	if isReservedOpcode(d.opcode) {
		return ErrInvalidOpcode
	}
	if d.masked != d.cfg.ExpectMaskedFrames && !d.cfg.AllowMaskMismatch {
		return ErrMaskMismatch
	}
	if isControlOpcode(d.opcode) {
		if !d.fin {
			return ErrFragmentedControl
		}
		if d.length7 > MaxControlFramePayload {
			return ErrControlFrameTooLarge
		}
		if d.opcode == OpcodeClose && d.length7 == 1 {
			return ErrInvalidCloseFrame
		}
		return nil
	}
	// Data frame fragmentation ordering (spec.md §4.4 "fragmentation
	// rules"): a CONT frame requires a prior non-final data frame in
	// progress; a non-CONT data frame must not arrive while one is.
	if d.opcode == OpcodeContinuation {
		if !d.fragmented {
			return ErrFragmentationOrder
		}
	} else if d.fragmented {
		return ErrFragmentationOrder
	}
	return nil
}

func (d *Decoder) stepSize(in buf.Buffer) (bool, error) {
	need := d.sizeLen - len(d.sizeBuf)
	progressed := false
	for need > 0 {
		if in.ReadableBytes() == 0 {
			return progressed, nil
		}
		b, _ := in.ReadByte()
		d.sizeBuf = append(d.sizeBuf, b)
		progressed = true
		need--
	}

	switch d.sizeLen {
	case 2:
		v := binary.BigEndian.Uint16(d.sizeBuf)
		if v < 126 {
			return false, d.violate(ErrFrameTooLarge)
		}
		d.length = int64(v)
	case 8:
		v := binary.BigEndian.Uint64(d.sizeBuf)
		if v&(1<<63) != 0 {
			return false, d.violate(ErrFrameTooLarge)
		}
		if v < 65536 {
			return false, d.violate(ErrFrameTooLarge)
		}
		d.length = int64(v)
	}

	if err := d.afterLengthResolved(); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Decoder) afterLengthResolved() error {
	if d.length > d.cfg.MaxFramePayloadLength {
		return d.violate(ErrFrameTooLarge)
	}
	if d.masked {
		d.maskBuf = d.maskBuf[:0]
		d.st = stMaskingKey
		return nil
	}
	d.remaining = d.length
	d.payloadAcc = d.payloadAcc[:0]
	d.st = stPayload
	return nil
}

func (d *Decoder) stepMaskingKey(in buf.Buffer) (bool, error) {
	need := 4 - len(d.maskBuf)
	progressed := false
	for need > 0 {
		if in.ReadableBytes() == 0 {
			return progressed, nil
		}
		b, _ := in.ReadByte()
		d.maskBuf = append(d.maskBuf, b)
		progressed = true
		need--
	}
	copy(d.maskKey[:], d.maskBuf)
	d.remaining = d.length
	d.payloadAcc = d.payloadAcc[:0]
	d.st = stPayload
	return true, nil
}

func (d *Decoder) stepPayload(in buf.Buffer, sink FrameSink) (bool, error) {
	if d.remaining == 0 {
		return d.finishFrame(buf.FromBytes(nil), sink)
	}

	avail := int64(in.ReadableBytes())
	if avail == 0 {
		return false, nil
	}

	if len(d.payloadAcc) == 0 && avail >= d.remaining {
		slice, err := in.Slice(int(d.remaining))
		if err != nil {
			return false, nil
		}
		return d.finishFrame(slice, sink)
	}

	want := d.remaining - int64(len(d.payloadAcc))
	n := avail
	if n > want {
		n = want
	}
	chunk, err := in.Slice(int(n))
	if err != nil {
		return false, nil
	}
	d.payloadAcc = append(d.payloadAcc, chunk.Bytes()...)
	chunk.Release()
	if int64(len(d.payloadAcc)) < d.remaining {
		return true, nil
	}
	full := buf.FromBytes(d.payloadAcc)
	d.payloadAcc = nil
	return d.finishFrame(full, sink)
}

// finishFrame unmasks the payload if needed, validates CLOSE/TEXT payload
// semantics, updates fragmentation tracking, and hands the frame to sink.
func (d *Decoder) finishFrame(payload buf.Buffer, sink FrameSink) (bool, error) {
	if d.masked && payload.ReadableBytes() > 0 {
		maskBytes(payload.Bytes(), d.maskKey)
	}

	if err := d.validatePayload(payload); err != nil {
		payload.Release()
		return false, d.violate(err)
	}

	frame := GetFrame()
	frame.Fin = d.fin
	frame.RSV1 = d.rsv1
	frame.RSV2 = d.rsv2
	frame.RSV3 = d.rsv3
	frame.Opcode = d.opcode
	frame.Masked = d.masked
	frame.MaskKey = d.maskKey
	frame.Payload = payload

	d.updateFragmentation()
	if d.opcode == OpcodeClose {
		d.closingReceived = true
	}

	sink.OnFrame(frame)
	d.st = stReadingFirst
	return true, nil
}

// validatePayload applies spec.md §4.4's CLOSE status-code/UTF-8 check and
// the streaming UTF-8 validation of TEXT (and its CONTINUATIONs).
func (d *Decoder) validatePayload(payload buf.Buffer) error {
	switch d.opcode {
	case OpcodeClose:
		b := payload.Bytes()
		if len(b) == 0 {
			return nil
		}
		if len(b) < 2 {
			return ErrInvalidCloseFrame
		}
		code := binary.BigEndian.Uint16(b[:2])
		if !validCloseCode(code) {
			return ErrInvalidCloseCode
		}
		if len(b) > 2 {
			var v utf8Validator
			if !v.write(b[2:], true) {
				return ErrInvalidUTF8
			}
		}
		return nil
	case OpcodeText:
		d.textValidator.reset()
		if !d.textValidator.write(payload.Bytes(), d.fin) {
			return ErrInvalidUTF8
		}
		return nil
	case OpcodeContinuation:
		if d.fragmented && d.fragOpcode == OpcodeText {
			if !d.textValidator.write(payload.Bytes(), d.fin) {
				return ErrInvalidUTF8
			}
		}
		return nil
	default:
		return nil
	}
}

func (d *Decoder) updateFragmentation() {
	if !isControlOpcode(d.opcode) {
		if d.fin {
			d.fragmented = false
			d.fragOpcode = 0
		} else {
			d.fragmented = true
			d.fragOpcode = d.opcode
		}
	}
	// A PING inside a fragmented sequence does not reset the counter
	// (spec.md §4.4); control frames otherwise leave fragmentation state
	// untouched.
}

// violate writes a synthesized 1002 Close frame through pl, transitions to
// the discard-everything Corrupt state, and returns the upstream error.
func (d *Decoder) violate(cause error) error {
	d.st = stCorrupt
	if d.enc != nil && d.pl != nil {
		out := buf.NewPooled(nil)
		if err := d.enc.EncodeClose(out, CloseProtocolError, ""); err == nil {
			d.pl.WriteAndFlush(out)
		}
	}
	return cause
}
