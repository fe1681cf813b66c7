package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type sseWriter struct {
	c       *gin.Context
	flusher http.Flusher
}

// startSSE writes the event-stream headers. It returns false when the
// writer cannot flush.
func startSSE(c *gin.Context) (*sseWriter, bool) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return nil, false
	}
	return &sseWriter{c: c, flusher: flusher}, true
}

func (w *sseWriter) send(event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		// keep SSE framing intact
		fmt.Fprintf(w.c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
		w.flusher.Flush()
		return
	}
	if event != "" {
		fmt.Fprintf(w.c.Writer, "event: %s\n", event)
	}
	fmt.Fprintf(w.c.Writer, "data: %s\n\n", b)
	w.flusher.Flush()
}
