// Package httpapi implements the HTTP surface over the agent pipeline
// (spec §6): chat, streaming chat, conversation management, health,
// readiness, and metrics. Grounded on the teacher's gin-based handler
// idiom (engine/auth/router/handler.go, engine/auth/error_response.go) and
// its SSE wire contract (engine/infra/server/router/sse_test.go — the only
// SSE-related file retrieved anywhere in the pack; sse.go itself
// reconstructs the implementation that test pins down, since no real
// sse.go was present to copy).
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	sseContentType    = "text/event-stream"
	sseCacheControl   = "no-cache"
	sseConnection     = "keep-alive"
	sseAccelBuffering = "no"
)

// heartbeatFrameBody is the fixed comment-only frame written by
// WriteHeartbeat to keep idle connections open through proxies that time
// out on silence.
const heartbeatFrameBody = ": heartbeat\n\n"

// flusher is satisfied by any http.ResponseWriter the server uses; gin's
// own ResponseWriter implements it directly.
type flusher interface {
	http.ResponseWriter
	Flush()
}

// Stream writes Server-Sent Events frames to an already-started SSE
// response.
type Stream struct {
	w flusher
}

// StartSSE sets the response headers an SSE client expects and returns a
// Stream ready to write frames. It does not write a status code; gin
// writes 200 on the first byte written.
func StartSSE(w http.ResponseWriter) *Stream {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	header := f.Header()
	header.Set("Content-Type", sseContentType)
	header.Set("Cache-Control", sseCacheControl)
	header.Set("Connection", sseConnection)
	header.Set("X-Accel-Buffering", sseAccelBuffering)
	return &Stream{w: f}
}

// WriteEvent writes one SSE frame: an id line, an event line, one data
// line per line of data, and the blank line terminating the frame, then
// flushes so the client receives it immediately.
func (s *Stream) WriteEvent(id int64, event string, data []byte) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", id)
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	s.w.Flush()
	return nil
}

// WriteHeartbeat writes a comment-only keepalive frame and flushes.
func (s *Stream) WriteHeartbeat() error {
	if _, err := s.w.Write([]byte(heartbeatFrameBody)); err != nil {
		return fmt.Errorf("write sse heartbeat: %w", err)
	}
	s.w.Flush()
	return nil
}

// LastEventID parses the Last-Event-ID request header a reconnecting SSE
// client sends, reporting its absence rather than erroring, but erroring
// on a present-but-non-integer value.
func LastEventID(r *http.Request) (int64, bool, error) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse Last-Event-ID: %w", err)
	}
	return id, true, nil
}
