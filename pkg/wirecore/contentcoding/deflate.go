package contentcoding

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// deflateCodec backs the "deflate"/"x-deflate" tokens. RFC 2616 names the
// zlib-wrapped stream, but enough deployed clients send raw DEFLATE that
// spec.md §4.7 allows a non-strict mode: peek the first two bytes and fall
// back to raw flate when they do not look like a zlib header.
type deflateCodec struct {
	strict bool
}

// zlibHeader reports whether the first two bytes look like a valid zlib
// header (RFC 1950 §2.2: CMF/FLG, with (CMF*256+FLG) a multiple of 31 and
// the compression method nibble set to 8 for DEFLATE).
func zlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0f != 8 {
		return false
	}
	return (uint16(cmf)*256+uint16(flg))%31 == 0
}

func (d deflateCodec) NewDecoder(r io.Reader) (io.ReadCloser, error) {
	if d.strict {
		return zlib.NewReader(r)
	}
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if zlibHeader(head) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func (d deflateCodec) NewEncoder(w io.Writer) (io.WriteCloser, error) {
	return zlib.NewWriter(w), nil
}
