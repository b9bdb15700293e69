package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams status updates as SSE, per §4.10: one `init` event
// carrying the full current TargetStatus array, then an `update` event per
// status-update message for as long as the client stays connected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.bus.SubscribeStatus()
	defer sub.Unsubscribe()

	if err := writeSSE(w, "init", s.statuses()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Events():
			if !ok {
				return
			}
			if msg.Lag {
				s.logger.Warn("sse subscriber lagged, client should resync via /api/status")
			}
			if err := writeSSE(w, "update", msg.Value); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}
