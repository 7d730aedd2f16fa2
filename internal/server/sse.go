package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// sseRetryMillis tells EventSource clients how long to wait before reconnecting
const sseRetryMillis = 3000

// SSEWriter writes a text/event-stream response. It is not safe for
// concurrent use; each handler owns its writer.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// NewSSEWriter sends the stream headers. It fails when the response cannot be
// flushed incrementally.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSEWriter{w: w, flusher: flusher}
	if err := s.frame(fmt.Sprintf("retry: %d\n\n", sseRetryMillis)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SSEWriter) frame(text string) error {
	if _, err := fmt.Fprint(s.w, text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteEvent sends one named event with a JSON payload and a sequence id
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	s.seq++
	return s.frame(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload))
}

// WriteComment sends a comment line, used as a keep-alive
func (s *SSEWriter) WriteComment(text string) error {
	return s.frame(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n")
}

// WriteError sends the terminal error event
func (s *SSEWriter) WriteError(err error) {
	_ = s.WriteEvent("error", newErrorResponse(err))
}

// WriteComplete sends the terminal success event
func (s *SSEWriter) WriteComplete(runID, status string) {
	_ = s.WriteEvent("complete", map[string]string{
		"run_id": runID,
		"status": status,
	})
}
