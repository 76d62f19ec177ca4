package upgrade

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/andresvela/wirecore/pkg/wirecore/aggregate"
	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
	"github.com/andresvela/wirecore/pkg/wirecore/websocket"
)

var (
	ErrBadStatus        = errors.New("upgrade: response status was not 101 Switching Protocols")
	ErrBadUpgradeHeader = errors.New("upgrade: response missing Upgrade: websocket")
	ErrBadAcceptKey     = errors.New("upgrade: Sec-WebSocket-Accept did not match the request nonce")
)

// ClientConfig holds a client handshaker's tunables.
type ClientConfig struct {
	Host         string
	Path         string
	// Origin, if non-empty, is sent as the Origin header (spec.md:151):
	// required for browser-facing handshakes, optional for others.
	Origin       string
	Subprotocols []string
	ExtraHeaders map[string]string
	Version      websocket.Version

	HTTPHandlerName string
	DecoderConfig   websocket.Config
	EncoderConfig   websocket.EncoderConfig
}

// DefaultClientConfig returns RFC 6455-only defaults.
func DefaultClientConfig(host, path string) ClientConfig {
	return ClientConfig{
		Host:            host,
		Path:            path,
		Version:         websocket.V13,
		HTTPHandlerName: "http1",
		DecoderConfig:   websocket.DefaultConfig(),
		EncoderConfig:   websocket.DefaultEncoderConfig(),
	}
}

// Client drives the client side of the handshake (spec.md §4.6).
type Client struct {
	cfg ClientConfig
	pl  pipeline.Pipeline
	key string
}

// NewClient constructs a Client bound to the connection's pipeline.
func NewClient(cfg ClientConfig, pl pipeline.Pipeline) *Client {
	return &Client{cfg: cfg, pl: pl}
}

func versionHeaderValue(v websocket.Version) string {
	switch v {
	case websocket.V13:
		return "13"
	case websocket.V08:
		return "8"
	case websocket.V07:
		return "7"
	default:
		return "13"
	}
}

// BuildRequest generates a fresh Sec-WebSocket-Key nonce, remembers it for
// response verification, and returns the wire bytes of the handshake
// request. The caller is responsible for writing it through the pipeline.
func (c *Client) BuildRequest() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	c.key = base64.StdEncoding.EncodeToString(nonce[:])

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(c.cfg.Path)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(c.cfg.Host)
	b.WriteString("\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Key: ")
	b.WriteString(c.key)
	b.WriteString("\r\n")
	b.WriteString("Sec-WebSocket-Version: ")
	b.WriteString(versionHeaderValue(c.cfg.Version))
	b.WriteString("\r\n")
	if c.cfg.Origin != "" {
		b.WriteString("Origin: ")
		b.WriteString(c.cfg.Origin)
		b.WriteString("\r\n")
	}
	if len(c.cfg.Subprotocols) > 0 {
		b.WriteString("Sec-WebSocket-Protocol: ")
		b.WriteString(strings.Join(c.cfg.Subprotocols, ", "))
		b.WriteString("\r\n")
	}
	for name, value := range c.cfg.ExtraHeaders {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String(), nil
}

// HandleUpgradeResponse validates the server's 101 response against the
// nonce generated by BuildRequest and, on success, rewires the pipeline
// from the HTTP codec to the WebSocket frame codec.
func (c *Client) HandleUpgradeResponse(fm *aggregate.FullMessage) (subprotocol string, err error) {
	m := fm.Start
	if m.StatusCode != 101 {
		return "", ErrBadStatus
	}
	if !m.Header.HasToken("Upgrade", "websocket") {
		return "", ErrBadUpgradeHeader
	}
	if !m.Header.HasToken("Connection", "upgrade") {
		return "", ErrBadUpgradeHeader
	}
	accept, _ := m.Header.Get("Sec-WebSocket-Accept")
	if accept != websocket.ComputeAcceptKey(c.key) {
		return "", ErrBadAcceptKey
	}
	subprotocol, _ = m.Header.Get("Sec-WebSocket-Protocol")

	c.rewirePipeline()
	return subprotocol, nil
}

func (c *Client) rewirePipeline() {
	enc := websocket.NewEncoder(c.cfg.EncoderConfig, nil)
	dec := websocket.NewDecoder(c.cfg.DecoderConfig, c.pl, enc)
	sink := pipelineFrameSink{pl: c.pl}
	handler := func(event any) error {
		in, ok := event.(buf.Buffer)
		if !ok {
			return nil
		}
		return dec.Decode(in, sink)
	}
	c.pl.AddAfter("websocket-codec", c.cfg.HTTPHandlerName, handler)
	if c.cfg.HTTPHandlerName != "" {
		c.pl.Remove(c.cfg.HTTPHandlerName)
	}
}
