// Package wirelog is the optional logging sink named in spec.md §9: a thin
// wrapper over an io.Writer emitting one JSON object per codec event
// (decode errors, protocol violations, handshake outcomes). Nothing in
// pkg/wirecore depends on this package — callers wire a Sink in only if
// they want observability, matching spec.md's "process-wide immutable
// constant tables plus one optional logger sink" design note.
package wirelog

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Entry is a single structured log record.
type Entry struct {
	Time   string `json:"time"`
	Level  string `json:"level"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Sink writes Entry records as newline-delimited JSON.
type Sink struct {
	out io.Writer
}

// NewSink constructs a Sink writing to w. A nil w defaults to os.Stdout,
// matching the teacher's logger middleware default.
func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{out: w}
}

func (s *Sink) write(level, event, detail string, err error) {
	entry := Entry{
		Time:  time.Now().UTC().Format(time.RFC3339),
		Level: level,
		Event: event,
	}
	entry.Detail = detail
	if err != nil {
		entry.Err = err.Error()
	}
	enc := json.NewEncoder(s.out)
	if encErr := enc.Encode(entry); encErr != nil {
		log.Printf("wirelog: failed to write log entry: %v", encErr)
	}
}

// Info logs a routine event: a handshake completed, a connection closed
// cleanly.
func (s *Sink) Info(event, detail string) { s.write("info", event, detail, nil) }

// Warn logs a recoverable per-message failure (spec §7's per-message
// failure path): a malformed header, an oversize request.
func (s *Sink) Warn(event, detail string, err error) { s.write("warn", event, detail, err) }

// Error logs an absorbing-state hard error (spec §7): a protocol
// violation, a premature close.
func (s *Sink) Error(event, detail string, err error) { s.write("error", event, detail, err) }
