package agui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Flusher is the subset of http.ResponseWriter needed to stream frames.
type Flusher interface {
	io.Writer
	Flush()
}

// SSEWriter writes deltas and run events as server-sent event frames.
type SSEWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSSEWriter wraps w. When w also implements Flush, every frame is
// flushed as soon as it is written.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// WriteDelta writes a delta frame named after its type.
func (s *SSEWriter) WriteDelta(d Delta) error {
	return s.write(string(d.Type), d)
}

// WriteRunEvent writes a lifecycle frame named after its type.
func (s *SSEWriter) WriteRunEvent(ev RunEvent) error {
	return s.write(string(ev.Type), ev)
}

func (s *SSEWriter) write(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event, err)
	}
	if f, ok := s.w.(Flusher); ok {
		f.Flush()
	}
	return nil
}
