// Package server wires the pin backend together: DuckDB storage, the atlas
// catalog, the event bus, and the Huma REST routes.
package server

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"

	"github.com/loveofminnesota/pinmap/internal/api"
	"github.com/loveofminnesota/pinmap/internal/api/live"
	"github.com/loveofminnesota/pinmap/internal/atlas"
	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/db"
	"github.com/loveofminnesota/pinmap/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string
	LogLevel string
}

// Server is the pin backend HTTP server.
type Server struct {
	config   Config
	log      zerolog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
}

// New creates a new pin server.
func New(cfg Config) (*Server, error) {
	log := NewLogger(cfg.LogLevel)
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("pinmap API", "1.0.0")
	humaConfig.Info.Description = "Pin backend for the Love of Minnesota map: pins, views, atlas categories, and live change events."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "pinmap"})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pins, err := store.New(conn, log)
	if err != nil {
		return nil, fmt.Errorf("init pin store: %w", err)
	}

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humaAPI,
		db:      conn,
		services: &api.Services{
			Pins:  pins,
			Atlas: atlas.NewService(cfg.DataDir),
			Bus:   bus.New(),
		},
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	api.RegisterHealth(s.humaAPI)
	api.NewInfoHandler(s.config.DataDir, s.db != nil).RegisterRoutes(s.humaAPI)
	api.NewPinHandler(s.services).RegisterRoutes(s.humaAPI)
	api.NewAtlasHandler(s.services).RegisterRoutes(s.humaAPI)
	api.NewStatsHandler(s.db).RegisterRoutes(s.humaAPI)
	live.NewEventHandler(s.services.Bus, s.log).RegisterRoutes(s.humaAPI)

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"service":"pinmap","status":"running"}`)
}
