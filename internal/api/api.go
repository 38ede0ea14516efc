// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/loveofminnesota/pinmap/internal/atlas"
	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// PinStore is the persistence surface the handlers need. *store.Store
// satisfies it.
type PinStore interface {
	List(ctx context.Context, viewer string) ([]pin.Entity, error)
	Get(ctx context.Context, id string) (pin.Entity, bool, error)
	Create(ctx context.Context, e pin.Entity) (pin.Entity, error)
	Archive(ctx context.Context, id string) (bool, error)
	RecordView(ctx context.Context, id string) (int, error)
	ViewCount(ctx context.Context, id string) (int, error)
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Pins  PinStore
	Atlas *atlas.Service
	Bus   *bus.Bus
}

// HealthBody is the health check response.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// RegisterHealth registers the health check route.
func RegisterHealth(api huma.API) {
	huma.Get(api, "/health", func(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
		return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
	}, huma.OperationTags("health"))
}
