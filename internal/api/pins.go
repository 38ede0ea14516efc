package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// PinBody is the transport form of a pin. Area-backed atlas entities are
// seeded by import scripts, not this API, so no boundary field is exposed.
type PinBody struct {
	ID          string    `json:"id,omitempty" doc:"Pin identifier"`
	OwnerID     string    `json:"ownerId,omitempty" doc:"Owning user"`
	Lat         float64   `json:"lat" doc:"Latitude" example:"44.9778"`
	Lng         float64   `json:"lng" doc:"Longitude" example:"-93.2650"`
	Description string    `json:"description,omitempty" maxLength:"2000" doc:"Pin description"`
	MediaURL    string    `json:"mediaUrl,omitempty" doc:"Attached media URL"`
	Emoji       string    `json:"emoji,omitempty" maxLength:"16" doc:"Marker glyph"`
	Category    string    `json:"category,omitempty" doc:"Atlas category id"`
	Visibility  string    `json:"visibility,omitempty" enum:"public,only_me" doc:"Who can see the pin"`
	Views       int       `json:"views" doc:"View count"`
	CreatedAt   time.Time `json:"createdAt,omitzero" doc:"Creation time"`
}

func toBody(e pin.Entity) PinBody {
	return PinBody{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Lat:         e.Lat,
		Lng:         e.Lng,
		Description: e.Description,
		MediaURL:    e.MediaURL,
		Emoji:       e.Emoji,
		Category:    e.Category,
		Visibility:  string(e.Visibility),
		Views:       e.Views,
		CreatedAt:   e.CreatedAt,
	}
}

// ViewerInput carries the opaque viewer identity. Authentication lives in
// front of this service; the header is trusted as-is.
type ViewerInput struct {
	Viewer string `header:"X-Viewer" doc:"Viewer user id" example:"alice"`
}

// PinIDInput identifies one pin.
type PinIDInput struct {
	ID string `path:"id" doc:"Pin ID"`
}

// ViewsBody reports a pin's view count.
type ViewsBody struct {
	ID    string `json:"id" doc:"Pin ID"`
	Views int    `json:"views" doc:"View count"`
}

// ArchiveBody reports the outcome of a soft delete.
type ArchiveBody struct {
	ID       string `json:"id" doc:"Pin ID"`
	Archived bool   `json:"archived" doc:"Whether this call archived the pin (false when it already was)"`
}

// PinHandler serves pin CRUD, archival and view tracking.
type PinHandler struct {
	svc *Services
}

// NewPinHandler creates a pin handler.
func NewPinHandler(svc *Services) *PinHandler {
	return &PinHandler{svc: svc}
}

// RegisterRoutes registers pin routes.
func (h *PinHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/pins", h.ListPins, huma.OperationTags("pins"))
	huma.Post(api, "/api/v1/pins", h.CreatePin, huma.OperationTags("pins"))
	huma.Get(api, "/api/v1/pins/{id}", h.GetPin, huma.OperationTags("pins"))
	huma.Delete(api, "/api/v1/pins/{id}", h.ArchivePin, huma.OperationTags("pins"))
	huma.Post(api, "/api/v1/pins/{id}/views", h.RecordView, huma.OperationTags("views"))
	huma.Get(api, "/api/v1/pins/{id}/views", h.GetViews, huma.OperationTags("views"))
}

func (h *PinHandler) ListPins(ctx context.Context, input *ViewerInput) (*struct{ Body []PinBody }, error) {
	entities, err := h.svc.Pins.List(ctx, input.Viewer)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list pins", err)
	}
	out := make([]PinBody, 0, len(entities))
	for _, e := range entities {
		out = append(out, toBody(e))
	}
	return &struct{ Body []PinBody }{Body: out}, nil
}

func (h *PinHandler) CreatePin(ctx context.Context, input *struct {
	ViewerInput
	Body PinBody
}) (*struct{ Body PinBody }, error) {
	e := pin.Entity{
		OwnerID:     input.Viewer,
		Lat:         input.Body.Lat,
		Lng:         input.Body.Lng,
		Description: input.Body.Description,
		MediaURL:    input.Body.MediaURL,
		Emoji:       input.Body.Emoji,
		Category:    input.Body.Category,
		Visibility:  pin.Visibility(input.Body.Visibility),
	}
	if _, ok := e.Position(); !ok {
		return nil, huma.Error422UnprocessableEntity("pin has no usable position")
	}
	created, err := h.svc.Pins.Create(ctx, e)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create pin", err)
	}
	h.publish(bus.KindPinCreated, created.ID)
	return &struct{ Body PinBody }{Body: toBody(created)}, nil
}

func (h *PinHandler) GetPin(ctx context.Context, input *PinIDInput) (*struct{ Body PinBody }, error) {
	e, ok, err := h.svc.Pins.Get(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read pin", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("pin not found")
	}
	return &struct{ Body PinBody }{Body: toBody(e)}, nil
}

// ArchivePin soft-deletes. A second delete of the same pin succeeds with
// Archived=false, so double submissions stay harmless.
func (h *PinHandler) ArchivePin(ctx context.Context, input *PinIDInput) (*struct{ Body ArchiveBody }, error) {
	archived, err := h.svc.Pins.Archive(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to archive pin", err)
	}
	if archived {
		h.publish(bus.KindPinArchived, input.ID)
	}
	return &struct{ Body ArchiveBody }{Body: ArchiveBody{ID: input.ID, Archived: archived}}, nil
}

func (h *PinHandler) RecordView(ctx context.Context, input *PinIDInput) (*struct{ Body ViewsBody }, error) {
	views, err := h.svc.Pins.RecordView(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	h.publish(bus.KindPinViewed, input.ID)
	return &struct{ Body ViewsBody }{Body: ViewsBody{ID: input.ID, Views: views}}, nil
}

func (h *PinHandler) GetViews(ctx context.Context, input *PinIDInput) (*struct{ Body ViewsBody }, error) {
	views, err := h.svc.Pins.ViewCount(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body ViewsBody }{Body: ViewsBody{ID: input.ID, Views: views}}, nil
}

func (h *PinHandler) publish(kind, id string) {
	if h.svc.Bus != nil {
		h.svc.Bus.Publish(bus.Event{Kind: kind, ID: id})
	}
}
