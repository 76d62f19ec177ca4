package contentcoding

import (
	"bytes"
	"io"
	"testing"
)

func TestRegistryResolveKnownTokens(t *testing.T) {
	r := NewRegistry()
	tokens := []string{"gzip", "X-GZIP", "deflate", "x-deflate", "br", "identity", ""}
	for _, tok := range tokens {
		if _, err := r.Resolve(tok); err != nil {
			t.Errorf("Resolve(%q) error = %v", tok, err)
		}
	}
}

func TestRegistryResolveUnknownToken(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("snappy"); err != ErrUnknownCoding {
		t.Fatalf("err = %v, want ErrUnknownCoding", err)
	}
}

func roundTrip(t *testing.T, c Codec, payload []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	enc, err := c.NewEncoder(&compressed)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	if _, err := enc.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dec, err := c.NewDecoder(&compressed)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer dec.Close()
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return got
}

func TestGzipCodecRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility")
	got := roundTrip(t, gzipCodec{}, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestDeflateCodecStrictRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	got := roundTrip(t, deflateCodec{strict: true}, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestDeflateCodecNonStrictAcceptsZlibStream(t *testing.T) {
	payload := []byte("zlib-wrapped payload decoded in non-strict mode")
	got := roundTrip(t, deflateCodec{strict: false}, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestBrotliCodecRoundTrip(t *testing.T) {
	payload := []byte("brotli is a supplemental coding the distillation is silent on")
	got := roundTrip(t, brotliCodec{}, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestIdentityCodecPassesThroughUnchanged(t *testing.T) {
	payload := []byte("untouched bytes")
	got := roundTrip(t, identityCodec{}, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestIsPassthru(t *testing.T) {
	cases := []struct {
		name                          string
		major, minor, status          int
		method                        string
		want                          bool
	}{
		{"http/1.0 always", 1, 0, 200, "GET", true},
		{"1xx always", 1, 1, 101, "GET", true},
		{"204", 1, 1, 204, "GET", true},
		{"304", 1, 1, 304, "GET", true},
		{"HEAD", 1, 1, 200, "HEAD", true},
		{"CONNECT 200", 1, 1, 200, "CONNECT", true},
		{"CONNECT non-200", 1, 1, 500, "CONNECT", false},
		{"ordinary 200 GET", 1, 1, 200, "GET", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsPassthru(c.major, c.minor, c.status, c.method); got != c.want {
				t.Errorf("IsPassthru() = %v, want %v", got, c.want)
			}
		})
	}
}
