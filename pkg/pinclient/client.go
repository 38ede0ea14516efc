// Package pinclient is a small hand-written client for the pinmap API.
// It implements the backend surface the map UI controllers need (listing
// pins, archiving, view tracking) plus the health and info endpoints.
package pinclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a pinmap server.
type Client struct {
	baseURL string
	viewer  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithViewer sets the viewer identity sent as the X-Viewer header.
func WithViewer(viewer string) Option {
	return func(c *Client) { c.viewer = viewer }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the given base URL, e.g. "http://localhost:8087".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Pin is the transport form of a pin.
type Pin struct {
	ID          string    `json:"id,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Description string    `json:"description,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	Emoji       string    `json:"emoji,omitempty"`
	Category    string    `json:"category,omitempty"`
	Visibility  string    `json:"visibility,omitempty"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// Category is an atlas catalog entry.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

// Health is the health check response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Info is the service info response.
type Info struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	DataDir  string   `json:"data_dir"`
	DB       bool     `json:"db"`
	Features []string `json:"features"`
}

// Stats summarizes the pin table.
type Stats struct {
	Pins       int            `json:"pins"`
	Archived   int            `json:"archived"`
	Views      int            `json:"views"`
	Categories map[string]int `json:"categories"`
}

type viewsBody struct {
	ID    string `json:"id"`
	Views int    `json:"views"`
}

type archiveBody struct {
	ID       string `json:"id"`
	Archived bool   `json:"archived"`
}

// APIError is a huma error model returned by the server.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Title, e.Status)
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// GetInfo fetches service metadata.
func (c *Client) GetInfo(ctx context.Context) (Info, error) {
	var out Info
	err := c.do(ctx, http.MethodGet, "/api/v1/info", nil, &out)
	return out, err
}

// ListPins lists pins visible to the configured viewer.
func (c *Client) ListPins(ctx context.Context) ([]Pin, error) {
	var out []Pin
	err := c.do(ctx, http.MethodGet, "/api/v1/pins", nil, &out)
	return out, err
}

// GetPin fetches one pin.
func (c *Client) GetPin(ctx context.Context, id string) (Pin, error) {
	var out Pin
	err := c.do(ctx, http.MethodGet, "/api/v1/pins/"+id, nil, &out)
	return out, err
}

// CreatePin creates a pin owned by the configured viewer.
func (c *Client) CreatePin(ctx context.Context, p Pin) (Pin, error) {
	var out Pin
	err := c.do(ctx, http.MethodPost, "/api/v1/pins", p, &out)
	return out, err
}

// ArchivePin soft-deletes a pin. Safe to call twice.
func (c *Client) ArchivePin(ctx context.Context, id string) error {
	var out archiveBody
	return c.do(ctx, http.MethodDelete, "/api/v1/pins/"+id, nil, &out)
}

// RecordView records one view and returns the new count.
func (c *Client) RecordView(ctx context.Context, id string) (int, error) {
	var out viewsBody
	err := c.do(ctx, http.MethodPost, "/api/v1/pins/"+id+"/views", nil, &out)
	return out.Views, err
}

// ViewCount fetches the current view count without recording one.
func (c *Client) ViewCount(ctx context.Context, id string) (int, error) {
	var out viewsBody
	err := c.do(ctx, http.MethodGet, "/api/v1/pins/"+id+"/views", nil, &out)
	return out.Views, err
}

// ListCategories lists the atlas catalog.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.do(ctx, http.MethodGet, "/api/v1/atlas/categories", nil, &out)
	return out, err
}

// GetStats fetches aggregate pin counts.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.viewer != "" {
		req.Header.Set("X-Viewer", c.viewer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		if err := json.Unmarshal(data, apiErr); err != nil && len(data) > 0 {
			// Not a huma error model (a proxy page, a panic trace); keep a
			// snippet so the failure isn't reduced to a bare status line.
			apiErr.Detail = bodySnippet(data)
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func bodySnippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
