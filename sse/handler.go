package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ylai/autoplatform/logger"
)

// KeepAlive is the interval between comment frames on idle streams; it
// stays under common proxy idle timeouts.
var KeepAlive = 30 * time.Second

// Serve streams events for a new client until the request ends or the hub
// stops. Each payload is written as one "data:" frame.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ...ClientOption) {
	log := logger.Get("sse").WithContext(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	// Streams outlive the server's read and write timeouts.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("write deadline not cleared", logger.Fields(logger.FieldError, err.Error()))
	}
	_ = rc.SetReadDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, opts...)
	if !hub.Register(client) {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, ": connected %s\n\n", clientID)
	flusher.Flush()
	log.Debug("stream opened", logger.Fields("client_id", clientID, "remote_addr", r.RemoteAddr))

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-client.Events():
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// Handler serves a stream whose client ids are "<prefix>:<uuid>". A token
// query parameter is kept as client metadata.
func Handler(hub *Hub, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := prefix + ":" + uuid.NewString()
		var opts []ClientOption
		if token := c.Query("token"); token != "" {
			opts = append(opts, WithMetadata("token", token))
		}
		Serve(hub, c.Writer, c.Request, id, opts...)
	}
}
