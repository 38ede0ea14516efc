package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
)

// StatsHandler reports aggregate pin counts straight from DuckDB.
type StatsHandler struct {
	db *sql.DB
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(db *sql.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// RegisterRoutes registers stats routes.
func (h *StatsHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/stats", h.GetStats, huma.OperationTags("stats"))
}

// StatsBody summarizes the pin table.
type StatsBody struct {
	Pins       int            `json:"pins" doc:"Live pin count"`
	Archived   int            `json:"archived" doc:"Archived pin count"`
	Views      int            `json:"views" doc:"Total recorded views"`
	Categories map[string]int `json:"categories" doc:"Live pin count per category"`
}

func (h *StatsHandler) GetStats(ctx context.Context, input *struct{}) (*struct{ Body StatsBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	body := StatsBody{Categories: map[string]int{}}

	row := h.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE NOT archived),
			count(*) FILTER (WHERE archived),
			coalesce(sum(views), 0)
		FROM pins`)
	if err := row.Scan(&body.Pins, &body.Archived, &body.Views); err != nil {
		return nil, huma.Error500InternalServerError("Failed to read stats", err)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT category, count(*) FROM pins
		WHERE NOT archived AND category != ''
		GROUP BY category`)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read category stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err == nil {
			body.Categories[cat] = n
		}
	}

	return &struct{ Body StatsBody }{Body: body}, nil
}
