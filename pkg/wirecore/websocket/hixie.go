package websocket

import "github.com/andresvela/wirecore/pkg/wirecore/buf"

// Hixie-00 is the pre-RFC 6455 draft spec.md §4.6 says an implementation may
// omit; it is implemented here rather than merely described, since the
// corpus's handshake code (shockwave/websocket/upgrade.go) is complete
// enough to generalize a minimal frame codec alongside it. Its wire format
// is unrelated to RFC 6455 framing: text frames are bracketed by 0x00 and
// 0xFF; binary frames are a 0x80 lead byte followed by a 7-bit
// variable-length length encoding (continuation in the top bit, big-endian
// group order) and that many raw payload bytes. There is no masking, no
// FIN bit, and no fragmentation — every frame is a complete message.
type hixieState uint8

const (
	hixieReadingType hixieState = iota
	hixieReadingText
	hixieReadingBinaryLength
	hixieReadingBinaryPayload
)

// HixieDecoder is the resumable Hixie-00 frame decoder, the legacy sibling
// of Decoder.
type HixieDecoder struct {
	st          hixieState
	textAcc     []byte
	lengthAccum int64
	remaining   int64
	payloadAcc  []byte
}

// NewHixieDecoder constructs a HixieDecoder.
func NewHixieDecoder() *HixieDecoder {
	return &HixieDecoder{st: hixieReadingType}
}

// Decode consumes a prefix of in and emits complete frames to sink.
func (d *HixieDecoder) Decode(in buf.Buffer, sink FrameSink) error {
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

func (d *HixieDecoder) step(in buf.Buffer, sink FrameSink) (bool, error) {
	switch d.st {
	case hixieReadingType:
		return d.stepType(in)
	case hixieReadingText:
		return d.stepText(in, sink)
	case hixieReadingBinaryLength:
		return d.stepBinaryLength(in)
	case hixieReadingBinaryPayload:
		return d.stepBinaryPayload(in, sink)
	default:
		return false, nil
	}
}

func (d *HixieDecoder) stepType(in buf.Buffer) (bool, error) {
	if in.ReadableBytes() == 0 {
		return false, nil
	}
	b, _ := in.ReadByte()
	switch {
	case b == 0x00:
		d.textAcc = d.textAcc[:0]
		d.st = hixieReadingText
	case b&0x80 != 0:
		d.lengthAccum = 0
		d.st = hixieReadingBinaryLength
	default:
		return false, ErrProtocolViolation
	}
	return true, nil
}

func (d *HixieDecoder) stepText(in buf.Buffer, sink FrameSink) (bool, error) {
	progressed := false
	for in.ReadableBytes() > 0 {
		b, _ := in.ReadByte()
		progressed = true
		if b == 0xFF {
			payload := buf.FromBytes(append([]byte(nil), d.textAcc...))
			d.textAcc = d.textAcc[:0]
			d.st = hixieReadingType
			frame := GetFrame()
			frame.Fin, frame.Opcode, frame.Payload = true, OpcodeText, payload
			sink.OnFrame(frame)
			return true, nil
		}
		d.textAcc = append(d.textAcc, b)
	}
	return progressed, nil
}

func (d *HixieDecoder) stepBinaryLength(in buf.Buffer) (bool, error) {
	progressed := false
	for in.ReadableBytes() > 0 {
		b, _ := in.ReadByte()
		progressed = true
		d.lengthAccum = d.lengthAccum<<7 | int64(b&0x7F)
		if b&0x80 == 0 {
			d.remaining = d.lengthAccum
			d.payloadAcc = d.payloadAcc[:0]
			d.st = hixieReadingBinaryPayload
			return true, nil
		}
	}
	return progressed, nil
}

func (d *HixieDecoder) stepBinaryPayload(in buf.Buffer, sink FrameSink) (bool, error) {
	if d.remaining == 0 {
		payload := buf.FromBytes(nil)
		d.st = hixieReadingType
		frame := GetFrame()
		frame.Fin, frame.Opcode, frame.Payload = true, OpcodeBinary, payload
		sink.OnFrame(frame)
		return true, nil
	}
	avail := int64(in.ReadableBytes())
	if avail == 0 {
		return false, nil
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
	payload := buf.FromBytes(d.payloadAcc)
	d.payloadAcc = nil
	d.st = hixieReadingType
	frame := GetFrame()
	frame.Fin, frame.Opcode, frame.Payload = true, OpcodeBinary, payload
	sink.OnFrame(frame)
	return true, nil
}

// EncodeHixieText writes a Hixie-00 text frame: 0x00, data, 0xFF.
func EncodeHixieText(out buf.Buffer, data []byte) error {
	if err := out.WriteByte(0x00); err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	return out.WriteByte(0xFF)
}

// EncodeHixieBinary writes a Hixie-00 binary frame: 0x80 lead byte, a 7-bit
// variable-length length encoding, then the raw payload.
func EncodeHixieBinary(out buf.Buffer, data []byte) error {
	if err := out.WriteByte(0x80); err != nil {
		return err
	}
	n := len(data)
	var lenBytes []byte
	if n == 0 {
		lenBytes = []byte{0x00}
	} else {
		for v := n; v > 0; v >>= 7 {
			lenBytes = append([]byte{byte(v & 0x7F)}, lenBytes...)
		}
		for i := 0; i < len(lenBytes)-1; i++ {
			lenBytes[i] |= 0x80
		}
	}
	if _, err := out.Write(lenBytes); err != nil {
		return err
	}
	_, err := out.Write(data)
	return err
}
