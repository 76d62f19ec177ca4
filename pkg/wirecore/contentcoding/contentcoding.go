// Package contentcoding resolves Content-Encoding tokens (spec §1, §6) to
// pluggable compression backends. The codec core never imports a
// compression library directly: it asks a Registry for a Codec by token and
// only ever talks to the returned io.Reader/io.Writer wrapper.
package contentcoding

import (
	"errors"
	"io"
	"strings"
)

// ErrUnknownCoding is returned by Registry.Resolve for a token with no
// registered Codec.
var ErrUnknownCoding = errors.New("contentcoding: unknown Content-Encoding token")

// Codec wraps a single compression algorithm behind streaming
// decoder/encoder constructors, the same shape bolt's response writer
// wraps gzip.Writer/gzip.Reader behind.
type Codec interface {
	NewDecoder(r io.Reader) (io.ReadCloser, error)
	NewEncoder(w io.Writer) (io.WriteCloser, error)
}

// Registry resolves a Content-Encoding token to a Codec, matching
// case-insensitively and treating the historical "x-" prefixed aliases
// (spec.md §1's "gzip/x-gzip", "deflate/x-deflate") as synonyms.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a Registry with gzip, deflate, brotli, and identity
// registered — the defaults spec.md §6 names.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register("gzip", gzipCodec{})
	r.Register("x-gzip", gzipCodec{})
	r.Register("deflate", deflateCodec{strict: true})
	r.Register("x-deflate", deflateCodec{strict: true})
	r.Register("br", brotliCodec{})
	r.Register("identity", identityCodec{})
	return r
}

// Register installs or replaces the Codec for token (case-insensitive).
func (r *Registry) Register(token string, c Codec) {
	r.codecs[strings.ToLower(token)] = c
}

// Resolve looks up the Codec for token. An empty token resolves to
// identity, matching the "no Content-Encoding header" case.
func (r *Registry) Resolve(token string) (Codec, error) {
	if token == "" {
		token = "identity"
	}
	c, ok := r.codecs[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return nil, ErrUnknownCoding
	}
	return c, nil
}

// IsPassthru reports whether a message's framing makes content-encoding
// irrelevant, spelled out explicitly per the resolved Open Question in
// spec.md §9(c): HTTP/1.0 responses, all 1xx responses, 204/304 responses,
// and responses to HEAD or to a successful CONNECT are always passthrough
// regardless of any Content-Encoding header.
func IsPassthru(protoMajor, protoMinor, statusCode int, method string) bool {
	if protoMajor == 1 && protoMinor == 0 {
		return true
	}
	if statusCode >= 100 && statusCode < 200 {
		return true
	}
	if statusCode == 204 || statusCode == 304 {
		return true
	}
	if strings.EqualFold(method, "HEAD") {
		return true
	}
	if strings.EqualFold(method, "CONNECT") && statusCode == 200 {
		return true
	}
	return false
}
