// Package upgrade implements the server and client sides of the HTTP
// Upgrade exchange that negotiates a connection from HTTP/1.x into
// WebSocket framing (spec.md §4.6). It consumes the aggregator's
// FullMessage output directly — the handshake request/response is just a
// FullMessage with an empty body — and, on success, rewires the owning
// pipeline from the HTTP codec to the WebSocket frame codec (spec §5's
// pipeline port).
package upgrade

import (
	"errors"
	"strings"

	"github.com/andresvela/wirecore/pkg/wirecore/aggregate"
	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/http1"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
	"github.com/andresvela/wirecore/pkg/wirecore/websocket"
)

var (
	ErrNotUpgradeRequest  = errors.New("upgrade: not a websocket upgrade request")
	ErrUnsupportedVersion = errors.New("upgrade: unsupported Sec-WebSocket-Version")
	ErrMissingKey         = errors.New("upgrade: missing Sec-WebSocket-Key")
)

// ServerConfig holds a server handshaker's tunables.
type ServerConfig struct {
	// Subprotocols lists supported subprotocols in order of preference.
	// "*" in this list matches any client-offered subprotocol.
	Subprotocols []string

	// HTTPHandlerName is the pipeline handler the HTTP decoder/aggregator
	// pair was installed under; it is removed on a successful handshake so
	// the WebSocket codec takes over subsequent reads.
	HTTPHandlerName string

	// AcceptedVersions lists the hybi draft versions this server will
	// negotiate (spec.md §4.6 "hybi-07/08/13 distinction"). Defaults to
	// {V13} via DefaultServerConfig.
	AcceptedVersions []websocket.Version

	DecoderConfig websocket.Config
	EncoderConfig websocket.EncoderConfig
}

// DefaultServerConfig returns RFC 6455-only defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPHandlerName:  "http1",
		AcceptedVersions: []websocket.Version{websocket.V13},
		DecoderConfig:    websocket.DefaultConfig(),
		EncoderConfig:    websocket.DefaultEncoderConfig(),
	}
}

// Server drives the server side of the handshake (spec.md §4.6).
type Server struct {
	cfg ServerConfig
	pl  pipeline.Pipeline
}

// NewServer constructs a Server bound to the connection's pipeline.
func NewServer(cfg ServerConfig, pl pipeline.Pipeline) *Server {
	return &Server{cfg: cfg, pl: pl}
}

// Accepted is fired as a pipeline user event once a handshake completes and
// the pipeline has been rewired, so upstream handlers can start sending
// WebSocket frames.
type Accepted struct {
	Subprotocol string
	Version     websocket.Version
}

// HandleUpgradeRequest validates fm as a WebSocket upgrade request, writes
// the 101 Switching Protocols response, and,
// on success, swaps the WebSocket decoder/encoder into the pipeline in
// place of the HTTP codec. It returns nil on success; a non-nil error means
// no response was written and the caller should respond with its own HTTP
// error (spec.md §7 "400 generation left to the application").
func (s *Server) HandleUpgradeRequest(fm *aggregate.FullMessage) error {
	m := fm.Start
	if m.Kind != http1.KindRequest || m.Method != "GET" {
		return ErrNotUpgradeRequest
	}
	if !m.Header.HasToken("Connection", "upgrade") {
		return ErrNotUpgradeRequest
	}
	if !m.Header.HasToken("Upgrade", "websocket") {
		return ErrNotUpgradeRequest
	}

	version, ok := s.resolveVersion(m)
	if !ok {
		return ErrUnsupportedVersion
	}

	key, hasKey := m.Header.Get("Sec-WebSocket-Key")
	if !hasKey || key == "" {
		return ErrMissingKey
	}

	subprotocol := s.selectSubprotocol(m)
	accept := websocket.ComputeAcceptKey(key)

	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: ")
	b.WriteString(accept)
	b.WriteString("\r\n")
	if subprotocol != "" {
		b.WriteString("Sec-WebSocket-Protocol: ")
		b.WriteString(subprotocol)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	s.pl.WriteAndFlush(b.String())
	s.rewirePipeline()
	s.pl.FireUserEvent(Accepted{Subprotocol: subprotocol, Version: version})
	return nil
}

func (s *Server) resolveVersion(m *http1.Message) (websocket.Version, bool) {
	v, _ := m.Header.Get("Sec-WebSocket-Version")
	var want websocket.Version
	switch v {
	case "13":
		want = websocket.V13
	case "8":
		want = websocket.V08
	case "7":
		want = websocket.V07
	default:
		return 0, false
	}
	for _, accepted := range s.cfg.AcceptedVersions {
		if accepted == want {
			return want, true
		}
	}
	return 0, false
}

func (s *Server) selectSubprotocol(m *http1.Message) string {
	if len(s.cfg.Subprotocols) == 0 {
		return ""
	}
	offered, ok := m.Header.Get("Sec-WebSocket-Protocol")
	if !ok {
		return ""
	}
	for _, server := range s.cfg.Subprotocols {
		for _, raw := range strings.Split(offered, ",") {
			client := strings.TrimSpace(raw)
			if server == "*" || strings.EqualFold(server, client) {
				return client
			}
		}
	}
	return ""
}

// pipelineFrameSink adapts websocket.FrameSink onto a Pipeline, forwarding
// each decoded frame as a FireRead event for the application's handlers.
type pipelineFrameSink struct{ pl pipeline.Pipeline }

func (s pipelineFrameSink) OnFrame(f *websocket.Frame) { s.pl.FireRead(f) }

// rewirePipeline removes the HTTP handler and installs the WebSocket frame
// codec in its place (spec.md §4.6 "swap the HTTP codec out of the pipeline
// for the WebSocket codec").
func (s *Server) rewirePipeline() {
	enc := websocket.NewEncoder(s.cfg.EncoderConfig, nil)
	dec := websocket.NewDecoder(s.cfg.DecoderConfig, s.pl, enc)
	sink := pipelineFrameSink{pl: s.pl}
	handler := func(event any) error {
		in, ok := event.(buf.Buffer)
		if !ok {
			return nil
		}
		return dec.Decode(in, sink)
	}
	s.pl.AddAfter("websocket-codec", s.cfg.HTTPHandlerName, handler)
	if s.cfg.HTTPHandlerName != "" {
		s.pl.Remove(s.cfg.HTTPHandlerName)
	}
}
