package sse

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Writer pushes SSE frames onto one gin response. It is the producer-side
// counterpart of the client stream consumer: every frame is flushed
// immediately so content deltas reach the client as they are generated.
type Writer struct {
	ctx     *gin.Context
	flusher http.Flusher
	hub     *Hub
	mirror  string // resource id mirrored through the hub, empty to disable
}

// NewWriter prepares the response headers for streaming and returns a writer.
// It fails when the underlying connection cannot flush.
func NewWriter(c *gin.Context) (*Writer, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by connection")
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	return &Writer{ctx: c, flusher: flusher}, nil
}

// Mirror additionally broadcasts every frame to hub subscribers of the given
// resource.
func (w *Writer) Mirror(hub *Hub, resource string) *Writer {
	w.hub = hub
	w.mirror = resource
	return w
}

// Send writes one event frame and flushes it.
func (w *Writer) Send(payload interface{}) error {
	ev := Event{Payload: payload}
	if _, err := fmt.Fprint(w.ctx.Writer, ev.Format()); err != nil {
		return err
	}
	w.flusher.Flush()

	if w.hub != nil && w.mirror != "" {
		w.hub.Broadcast(w.mirror, ev)
	}
	return nil
}

// Forward writes an already-built event frame and flushes it. Watcher
// connections use it to relay frames received through a hub.
func (w *Writer) Forward(ev Event) error {
	if _, err := fmt.Fprint(w.ctx.Writer, ev.Format()); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// Closed reports whether the client has gone away.
func (w *Writer) Closed() bool {
	select {
	case <-w.ctx.Request.Context().Done():
		return true
	default:
		return false
	}
}
