package pipeline

import (
	"errors"
	"fmt"
)

// ErrHandlerNotFound is returned by AddAfter/AddBefore/Remove when the named
// anchor handler is not present in the chain.
var ErrHandlerNotFound = errors.New("pipeline: handler not found")

type namedHandler struct {
	name string
	fn   Handler
}

// Inmem is a deterministic, single-goroutine Pipeline test double, grounded
// on the named, ordered handler-chain shape of bolt/core/router.go's
// middleware chain generalized from HTTP routing to codec-swap routing:
// FireRead walks the chain in order; AddAfter/AddBefore/Remove mutate it by
// name, the mechanism the upgrade handshake uses to swap in a WebSocket
// decoder after the 101 response.
type Inmem struct {
	handlers []namedHandler

	// Written records every message passed to WriteAndFlush, in order —
	// tests inspect this to assert what the codec wrote upstream (the
	// synthesized 100-Continue/413/417 responses, for instance).
	Written []any

	// UserEvents records every event raised via FireUserEvent.
	UserEvents []any
}

// NewInmem constructs an empty Inmem pipeline.
func NewInmem() *Inmem {
	return &Inmem{}
}

// Add appends a named handler to the end of the chain.
func (p *Inmem) Add(name string, h Handler) {
	p.handlers = append(p.handlers, namedHandler{name: name, fn: h})
}

func (p *Inmem) indexOf(name string) int {
	for i, nh := range p.handlers {
		if nh.name == name {
			return i
		}
	}
	return -1
}

// FireRead walks the chain in order, stopping early if a handler returns an
// error (the error is otherwise swallowed, matching a best-effort test
// double — callers that need to observe it should have the handler itself
// record it).
func (p *Inmem) FireRead(event any) {
	for _, nh := range p.handlers {
		if err := nh.fn(event); err != nil {
			return
		}
	}
}

// FireUserEvent records event for inspection and replays it through the
// chain exactly like FireRead, since handlers in this codec do not
// distinguish the two (both are just "something happened").
func (p *Inmem) FireUserEvent(event any) {
	p.UserEvents = append(p.UserEvents, event)
	p.FireRead(event)
}

// WriteAndFlush records msg and reports success immediately on a
// single-buffered channel — there is no real transport to flush to.
func (p *Inmem) WriteAndFlush(msg any) <-chan error {
	p.Written = append(p.Written, msg)
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (p *Inmem) AddAfter(name, afterName string, h Handler) error {
	idx := p.indexOf(afterName)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, afterName)
	}
	p.insertAt(idx+1, name, h)
	return nil
}

func (p *Inmem) AddBefore(name, beforeName string, h Handler) error {
	idx := p.indexOf(beforeName)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, beforeName)
	}
	p.insertAt(idx, name, h)
	return nil
}

func (p *Inmem) insertAt(idx int, name string, h Handler) {
	nh := namedHandler{name: name, fn: h}
	p.handlers = append(p.handlers, namedHandler{})
	copy(p.handlers[idx+1:], p.handlers[idx:])
	p.handlers[idx] = nh
}

func (p *Inmem) Remove(name string) error {
	idx := p.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	p.handlers = append(p.handlers[:idx], p.handlers[idx+1:]...)
	return nil
}
