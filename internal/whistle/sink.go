// internal/whistle/sink.go
package whistle

import (
	"fmt"
	"io"
	"sync"
)

// EventSink consumes detection output. Implementations must be cheap enough
// to run inline on the thread driving the detector.
type EventSink interface {
	// WhistleStarted is called when a whistle opens. now is seconds since
	// stream start.
	WhistleStarted(now float64)
	// WhistleEnded is called with the event record when a whistle closes,
	// whether or not it was accepted.
	WhistleEnded(ev Event)
}

// ConsoleSink renders events as human-readable lines and accumulates the
// accepted total for the final summary.
type ConsoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	total int
}

// NewConsoleSink creates a console sink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// WhistleStarted prints the whistle start line.
func (s *ConsoleSink) WhistleStarted(now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "[%6.2fs] Whistle start\n", now)
}

// WhistleEnded prints the accept or reject line for a closed whistle.
func (s *ConsoleSink) WhistleEnded(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Accepted {
		s.total = ev.Count
		fmt.Fprintf(s.out, "[%6.2fs] Whistle #%d  duration %.2fs\n", ev.End, ev.Count, ev.Duration)
	} else {
		fmt.Fprintf(s.out, "[%6.2fs] Ignored whistle (%.2fs out of range)\n", ev.End, ev.Duration)
	}
}

// Total returns the accepted count seen so far.
func (s *ConsoleSink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Summary prints the final accepted total. An open whistle at shutdown is
// simply not part of it.
func (s *ConsoleSink) Summary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Total whistles counted: %d\n", s.total)
}
