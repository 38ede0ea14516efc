//go:build integration

// Integration test for the pinmap client.
// Requires a running server: go run ./cmd/pinmap
//
// Run: go test -tags=integration ./pkg/pinclient/
package pinclient_test

import (
	"context"
	"os"
	"testing"

	"github.com/loveofminnesota/pinmap/pkg/pinclient"
)

func baseURL() string {
	if u := os.Getenv("PINMAP_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8087"
}

func client() *pinclient.Client {
	return pinclient.New(baseURL(), pinclient.WithViewer("integration-test"))
}

func TestHealth(t *testing.T) {
	body, err := client().Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	body, err := client().GetInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if body.Name != "pinmap" {
		t.Fatalf("name=%q, want pinmap", body.Name)
	}
}

func TestListCategories(t *testing.T) {
	cats, err := client().ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) == 0 {
		t.Fatal("no categories, want at least defaults")
	}
}

func TestPinLifecycle(t *testing.T) {
	c := client()
	ctx := context.Background()

	created, err := c.CreatePin(ctx, pinclient.Pin{
		Lat:         44.9778,
		Lng:         -93.2650,
		Description: "Integration test pin",
		Emoji:       "*",
		Visibility:  "public",
	})
	if err != nil {
		t.Fatal("create:", err)
	}
	if created.ID == "" {
		t.Fatal("created pin has no id")
	}
	if created.OwnerID != "integration-test" {
		t.Fatalf("owner=%q, want integration-test", created.OwnerID)
	}

	got, err := c.GetPin(ctx, created.ID)
	if err != nil {
		t.Fatal("get:", err)
	}
	if got.Description != "Integration test pin" {
		t.Fatalf("description=%q", got.Description)
	}

	views, err := c.RecordView(ctx, created.ID)
	if err != nil {
		t.Fatal("record view:", err)
	}
	if views != 1 {
		t.Fatalf("views=%d, want 1", views)
	}

	count, err := c.ViewCount(ctx, created.ID)
	if err != nil {
		t.Fatal("view count:", err)
	}
	if count != 1 {
		t.Fatalf("count=%d, want 1", count)
	}

	if err := c.ArchivePin(ctx, created.ID); err != nil {
		t.Fatal("archive:", err)
	}
	// second archive is a no-op, not an error
	if err := c.ArchivePin(ctx, created.ID); err != nil {
		t.Fatal("re-archive:", err)
	}

	pins, err := c.ListPins(ctx)
	if err != nil {
		t.Fatal("list:", err)
	}
	for _, p := range pins {
		if p.ID == created.ID {
			t.Fatal("archived pin still listed")
		}
	}
}

func TestGetPinNotFound(t *testing.T) {
	_, err := client().GetPin(context.Background(), "no-such-pin")
	apiErr, ok := err.(*pinclient.APIError)
	if !ok {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Status != 404 {
		t.Fatalf("status=%d, want 404", apiErr.Status)
	}
}
