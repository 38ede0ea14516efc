// Package live streams pin mutation events to connected map clients over
// SSE using the Datastar protocol. Clients use the events to keep their
// rendered pin layers fresh without polling.
package live

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/loveofminnesota/pinmap/internal/bus"
)

// EventHandler streams bus events to subscribed clients.
type EventHandler struct {
	bus *bus.Bus
	log zerolog.Logger
}

// NewEventHandler creates an event handler.
func NewEventHandler(b *bus.Bus, log zerolog.Logger) *EventHandler {
	return &EventHandler{bus: b, log: log.With().Str("component", "live").Logger()}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("live"),
	)
}

// Events holds the connection open and forwards every bus event as a
// Datastar custom event. The stream ends when the client disconnects.
func (h *EventHandler) Events(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			r, w := humago.Unwrap(humaCtx)
			sse := datastar.NewSSE(w, r)

			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			h.log.Debug().Msg("client connected")
			for {
				select {
				case <-r.Context().Done():
					h.log.Debug().Msg("client disconnected")
					return
				case ev := <-ch:
					payload := map[string]any{
						"kind": ev.Kind,
						"id":   ev.ID,
					}
					for k, v := range ev.Data {
						payload[k] = v
					}
					sse.DispatchCustomEvent("pin-changed", payload)
				}
			}
		},
	}, nil
}
