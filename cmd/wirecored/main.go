// Command wirecored is a minimal illustration of wiring the wirecore
// packages together: an HTTP/1.x decoder feeds an aggregator, the
// aggregator's FullMessage events are checked for a WebSocket upgrade, and
// an accepted handshake rewires the connection onto the frame codec which
// echoes every text/binary frame back to the sender. Connection scheduling
// itself (accept loop, goroutine-per-connection) is the thinnest possible
// wrapper — the owning network pipeline is explicitly out of scope for the
// codec packages themselves (spec.md's Non-goals).
package main

import (
	"flag"
	"net"

	"github.com/andresvela/wirecore/internal/wirelog"
	"github.com/andresvela/wirecore/pkg/wirecore/aggregate"
	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/http1"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
	"github.com/andresvela/wirecore/pkg/wirecore/upgrade"
	"github.com/andresvela/wirecore/pkg/wirecore/websocket"
)

// connPipeline is the thinnest possible pipeline.Pipeline over a net.Conn:
// a linear, named handler chain with no concurrency of its own, matching
// the single-threaded cooperative model spec.md §5 requires of the codec
// core. It is deliberately not part of pkg/wirecore — applications are
// expected to supply their own Pipeline wired to their own transport and
// scheduler.
type connPipeline struct {
	conn     net.Conn
	handlers []namedHandler
	log      *wirelog.Sink
}

type namedHandler struct {
	name string
	fn   pipeline.Handler
}

func newConnPipeline(conn net.Conn, log *wirelog.Sink) *connPipeline {
	return &connPipeline{conn: conn, log: log}
}

func (p *connPipeline) add(name string, fn pipeline.Handler) {
	p.handlers = append(p.handlers, namedHandler{name: name, fn: fn})
}

func (p *connPipeline) indexOf(name string) int {
	for i, h := range p.handlers {
		if h.name == name {
			return i
		}
	}
	return -1
}

func (p *connPipeline) FireRead(event any) {
	for _, h := range p.handlers {
		if err := h.fn(event); err != nil {
			p.log.Warn("pipeline.handler_error", h.name, err)
			return
		}
	}
}

func (p *connPipeline) FireUserEvent(event any) { p.FireRead(event) }

func (p *connPipeline) WriteAndFlush(msg any) <-chan error {
	ch := make(chan error, 1)
	var err error
	switch m := msg.(type) {
	case string:
		_, err = p.conn.Write([]byte(m))
	case []byte:
		_, err = p.conn.Write(m)
	}
	ch <- err
	return ch
}

func (p *connPipeline) AddAfter(name, afterName string, h pipeline.Handler) error {
	idx := p.indexOf(afterName)
	if idx < 0 {
		idx = len(p.handlers) - 1
	}
	nh := namedHandler{name: name, fn: h}
	p.handlers = append(p.handlers, namedHandler{})
	copy(p.handlers[idx+2:], p.handlers[idx+1:])
	p.handlers[idx+1] = nh
	return nil
}

func (p *connPipeline) AddBefore(name, beforeName string, h pipeline.Handler) error {
	idx := p.indexOf(beforeName)
	if idx < 0 {
		idx = 0
	}
	nh := namedHandler{name: name, fn: h}
	p.handlers = append(p.handlers, namedHandler{})
	copy(p.handlers[idx+1:], p.handlers[idx:])
	p.handlers[idx] = nh
	return nil
}

func (p *connPipeline) Remove(name string) error {
	idx := p.indexOf(name)
	if idx < 0 {
		return nil
	}
	p.handlers = append(p.handlers[:idx], p.handlers[idx+1:]...)
	return nil
}

type echoSink struct {
	enc  *websocket.Encoder
	conn net.Conn
}

func (e echoSink) OnFrame(f *websocket.Frame) {
	defer f.Release()
	out := buf.NewPooled(nil)
	switch f.Opcode {
	case websocket.OpcodeText:
		e.enc.EncodeText(out, f.Payload.Bytes(), true)
	case websocket.OpcodeBinary:
		e.enc.EncodeBinary(out, f.Payload.Bytes(), true)
	case websocket.OpcodePing:
		e.enc.EncodePong(out, f.Payload.Bytes())
	default:
		return
	}
	e.conn.Write(out.Bytes())
}

func handleConn(conn net.Conn, log *wirelog.Sink) {
	defer conn.Close()

	pl := newConnPipeline(conn, log)
	dec := http1.NewDecoder(http1.RoleServer, http1.DefaultConfig())
	agg := aggregate.New(aggregate.DefaultConfig(), pl)
	upgraded := false

	pl.add("http1", func(event any) error {
		fm, ok := event.(*aggregate.FullMessage)
		if !ok {
			return nil
		}
		srv := upgrade.NewServer(upgrade.DefaultServerConfig(), pl)
		if err := srv.HandleUpgradeRequest(fm); err != nil {
			log.Warn("upgrade.rejected", fm.Start.Target, err)
			return err
		}
		log.Info("upgrade.accepted", fm.Start.Target)
		upgraded = true

		sink := echoSink{enc: websocket.NewEncoder(websocket.DefaultEncoderConfig(), nil), conn: conn}
		pl.AddAfter("echo", "websocket-codec", func(event any) error {
			if f, ok := event.(*websocket.Frame); ok {
				sink.OnFrame(f)
			}
			return nil
		})
		return nil
	})

	readBuf := make([]byte, 4096)
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			in := buf.FromBytes(append([]byte(nil), readBuf[:n]...))
			if upgraded {
				pl.FireRead(in)
			} else if decErr := dec.Decode(in, agg); decErr != nil {
				log.Error("decode.error", "", decErr)
				return
			} else if aggErr := agg.Err(); aggErr != nil {
				log.Error("aggregate.error", "", aggErr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := wirelog.NewSink(nil)
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Error("listen.failed", *addr, err)
		return
	}
	log.Info("listening", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept.failed", "", err)
			continue
		}
		go handleConn(conn, log)
	}
}
