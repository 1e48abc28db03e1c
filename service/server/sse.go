package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/sendsol/service/metrics"
	"github.com/brojonat/sendsol/service/session"
)

const (
	sseStream            = "session"
	sseKeepaliveInterval = 10 * time.Second
)

// handleStreamSession handles SSE streaming of session events.
// GET /api/v1/stream/session
// The client first receives a "connected" event, then a "session" event with
// the current snapshot, then one "session" event per change.
func handleStreamSession(ctrl SessionController, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Streams outlive the server's write timeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.DebugContext(r.Context(), "could not clear write deadline", "error", err)
		}

		// Subscribe before reading the snapshot so no change is missed.
		events, cancel := ctrl.Subscribe()
		defer cancel()

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flush := func() {
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		flush()

		if m != nil {
			m.RecordSSEConnectionChange(sseStream, 1)
			defer m.RecordSSEConnectionChange(sseStream, -1)
		}

		logger.DebugContext(r.Context(), "SSE client connected",
			"session_id", ctrl.ID(),
			"remote_addr", r.RemoteAddr,
		)

		fmt.Fprintf(w, "event: connected\ndata: {\"session_id\":%q}\n\n", ctrl.ID())
		writeSessionEvent(w, session.Event{
			Type:    session.EventState,
			Session: ctrl.Snapshot(),
			At:      time.Now().UTC(),
		}, m, logger)
		flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flush()

			case ev, ok := <-events:
				if !ok {
					// Session closed
					fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
					flush()
					return
				}
				writeSessionEvent(w, ev, m, logger)
				flush()

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"session_id", ctrl.ID(),
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}

func writeSessionEvent(w http.ResponseWriter, ev session.Event, m *metrics.Metrics, logger *slog.Logger) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("failed to marshal session event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
	if m != nil {
		m.RecordSSEEventSent(sseStream, string(ev.Type))
	}
}
