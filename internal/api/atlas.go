package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/loveofminnesota/pinmap/internal/atlas"
)

// AtlasHandler serves the curated category catalog.
type AtlasHandler struct {
	svc *Services
}

// NewAtlasHandler creates an atlas handler.
func NewAtlasHandler(svc *Services) *AtlasHandler {
	return &AtlasHandler{svc: svc}
}

// RegisterRoutes registers atlas routes.
func (h *AtlasHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/atlas/categories", h.ListCategories, huma.OperationTags("atlas"))
	huma.Get(api, "/api/v1/atlas/categories/{id}", h.GetCategory, huma.OperationTags("atlas"))
}

func (h *AtlasHandler) ListCategories(ctx context.Context, input *struct{}) (*struct {
	Body []atlas.Category
}, error) {
	return &struct{ Body []atlas.Category }{Body: h.svc.Atlas.List()}, nil
}

func (h *AtlasHandler) GetCategory(ctx context.Context, input *struct {
	ID string `path:"id" doc:"Category ID" example:"lake"`
}) (*struct{ Body atlas.Category }, error) {
	c, ok := h.svc.Atlas.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("category not found")
	}
	return &struct{ Body atlas.Category }{Body: c}, nil
}
