package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SSEWriter encodes events as text/event-stream frames, one
// "data: <json>\n\n" frame per event, flushing after every frame so
// intermediaries cannot batch them.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter wraps w. If w implements http.Flusher every frame is flushed
// immediately; otherwise writes are best-effort (useful in tests).
func NewSSEWriter(w io.Writer) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

func (s *SSEWriter) WriteEvent(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// SSEHeaders sets the response headers for an event stream: no caching and
// no intermediary buffering, so frames reach the client as they are written.
func SSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
