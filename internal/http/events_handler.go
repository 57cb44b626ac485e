package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const keepAliveInterval = 25 * time.Second

type EventsHandler struct {
	bus  *session.Bus
	cart *cart.Reconciler
}

func NewEventsHandler(bus *session.Bus, c *cart.Reconciler) *EventsHandler {
	return &EventsHandler{bus: bus, cart: c}
}

type eventDTO struct {
	Count *int `json:"count,omitempty"`
}

// Stream pushes cart.changed and user.changed as server-sent events until
// the client goes away.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	topics := make(chan string, 16)
	forward := func(_ context.Context, topic string) {
		select {
		case topics <- topic:
		default:
		}
	}
	defer h.bus.Subscribe(session.TopicCartChanged, forward)()
	defer h.bus.Subscribe(session.TopicUserChanged, forward)()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case topic := <-topics:
			var ev eventDTO
			if topic == session.TopicCartChanged {
				n := h.cart.Count(ctx)
				ev.Count = &n
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", topic, data)
			flusher.Flush()
		}
	}
}
