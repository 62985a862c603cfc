package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// handleEvents serves the live SSE channel. Late subscribers never receive
// past events here (spec.md §5) — see handleActivity for pull-based history.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	connected, _ := json.Marshal(SSEEvent{Type: "connected", Payload: gw.jobs.GetStats()})
	fmt.Fprintf(w, "data: %s\n\n", connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			w.Write(frame)
			flusher.Flush()
		}
	}
}

// handleActivity serves the bounded activity-feed ring buffer (SPEC_FULL §12.3).
func (gw *Gateway) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": gw.activity.recent(limit)})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.jobs.GetStats())
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
