package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airgrid-tv/airgrid/internal/domain"
	"github.com/airgrid-tv/airgrid/internal/infra/observability"
)

// ─── Job Event Stream ───────────────────────────────────────────────────────
// Two transports deliver the coordinator's event feed: Server-Sent Events
// for plain HTTP clients and WebSocket for clients that also send
// commands (ping, cancel_job, get_jobs). Both send a keepalive at the
// configured interval (≤30s) so stale connections are detected.

// handleJobsSSE streams job events as SSE frames.
// GET /api/jobs/stream
func (s *Server) handleJobsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	sub := s.coordinator.Subscribe()
	defer s.coordinator.Unsubscribe(sub)
	observability.StreamSubscribers.Inc()
	defer observability.StreamSubscribers.Dec()

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			// SSE comment frame keeps the connection warm.
			w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				// Dropped for falling behind.
				observability.StreamDropped.Inc()
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// ─── WebSocket Transport ────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is an inbound WebSocket frame.
type clientMessage struct {
	Type  string `json:"type"` // "ping", "cancel_job", "get_jobs"
	JobID string `json:"jobId,omitempty"`
}

// handleJobsWS streams job events over WebSocket with ping/pong
// keepalive and inbound command handling.
// GET /api/jobs/ws
func (s *Server) handleJobsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.coordinator.Subscribe()
	defer s.coordinator.Unsubscribe(sub)
	observability.StreamSubscribers.Inc()
	defer observability.StreamSubscribers.Dec()

	pongWait := s.keepalive * 2
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// All writes go through the writer goroutine; the reader hands its
	// responses over outbound so the connection never sees concurrent
	// writers.
	outbound := make(chan any, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ping := time.NewTicker(s.keepalive)
		defer ping.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case msg := <-outbound:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case event, ok := <-sub.Events():
				if !ok {
					observability.StreamDropped.Inc()
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			}
		}
	}()

	// Reader: client commands.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			select {
			case outbound <- map[string]string{"type": "pong"}:
			default:
			}
		case "cancel_job":
			if msg.JobID != "" {
				s.coordinator.Cancel(msg.JobID)
			}
		case "get_jobs":
			select {
			case outbound <- domain.JobEvent{
				Type: domain.EventJobsState,
				Jobs: s.coordinator.ListRecent(0),
			}:
			default:
			}
		}
	}
	<-done
}
