// Package pipeline defines the abstract handler-chain port the codec's
// upper layers (aggregator, upgrade) write through and raise events on. The
// codec core never owns sockets or goroutines directly (spec §5); it is
// handed a Pipeline by its caller and only ever calls back through it.
package pipeline

// Handler is a single named step in a Pipeline, grounded on the teacher's
// middleware shape (bolt/core/types.go's Handler/Middleware pair): a
// function invoked with the event flowing through the chain, returning an
// error to halt further propagation.
type Handler func(event any) error

// Pipeline is the port described in spec.md's Design Notes: FireRead
// delivers an inbound event to the chain, FireUserEvent raises an
// out-of-band event (protocol-switch notifications, ExpectationFailed),
// WriteAndFlush serializes an outbound message and reports completion
// asynchronously, and AddAfter/AddBefore/Remove rewire the chain itself —
// the mechanism spec.md's upgrade handshake uses to swap an HTTP decoder for
// a WebSocket frame decoder mid-connection without tearing down the
// connection.
type Pipeline interface {
	FireRead(event any)
	FireUserEvent(event any)
	WriteAndFlush(msg any) <-chan error
	AddAfter(name string, afterName string, h Handler) error
	AddBefore(name string, beforeName string, h Handler) error
	Remove(name string) error
}
