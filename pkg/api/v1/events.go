package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/session"
)

// EventsRoutes defines the routes for the session event stream.
type EventsRoutes struct {
	bus *session.Bus
}

// EventsRouter creates a new router for the session event stream.
func EventsRouter(bus *session.Bus) http.Handler {
	routes := EventsRoutes{bus: bus}

	r := chi.NewRouter()
	r.Get("/", routes.streamEvents)

	return r
}

// streamEvents delivers session events as Server-Sent Events until the
// client disconnects. Each event is one SSE message whose event field is the
// session event type and whose data is the JSON-encoded event.
func (e *EventsRoutes) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := e.bus.Subscribe()
	defer cancel()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Errorf("Failed to encode session event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
