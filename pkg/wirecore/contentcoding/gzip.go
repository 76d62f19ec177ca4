package contentcoding

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipCodec backs the "gzip"/"x-gzip" tokens with klauspost/compress's
// drop-in gzip implementation.
type gzipCodec struct{}

func (gzipCodec) NewDecoder(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewEncoder(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}
