package contentcoding

import (
	"io"

	"github.com/andybalholm/brotli"
)

// brotliCodec backs the "br" token, a supplemental coding spec.md's
// distillation is silent on and therefore does not exclude.
type brotliCodec struct{}

func (brotliCodec) NewDecoder(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

func (brotliCodec) NewEncoder(w io.Writer) (io.WriteCloser, error) {
	return brotli.NewWriter(w), nil
}

// identityCodec is the zero-value passthrough named in spec.md §6.
type identityCodec struct{}

func (identityCodec) NewDecoder(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (identityCodec) NewEncoder(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}
