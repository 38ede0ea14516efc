package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/loveofminnesota/pinmap/internal/pin"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("duckdb", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, pin.Entity{
		OwnerID:     "alice",
		Lat:         44.9778,
		Lng:         -93.2650,
		Description: "Stone Arch Bridge",
		Emoji:       "B",
		Category:    "landmark",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.Visibility != pin.VisibilityPublic {
		t.Fatalf("visibility=%q, want public default", created.Visibility)
	}

	got, ok, err := s.Get(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Description != "Stone Arch Bridge" || got.OwnerID != "alice" {
		t.Fatalf("got=%+v", got)
	}
}

func TestBoundaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boundary := orb.Polygon{{{-93.3, 44.9}, {-93.2, 44.9}, {-93.2, 45.0}, {-93.3, 45.0}, {-93.3, 44.9}}}
	created, err := s.Create(ctx, pin.Entity{OwnerID: "atlas", Boundary: boundary, Category: "city"})
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Boundary) != 1 || len(got.Boundary[0]) != 5 {
		t.Fatalf("boundary=%v", got.Boundary)
	}
	if _, ok := got.Position(); !ok {
		t.Fatal("boundary-backed pin should derive a centroid position")
	}
}

func TestListVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Create(ctx, pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93, Visibility: pin.VisibilityOnlyMe})
	s.Create(ctx, pin.Entity{OwnerID: "bob", Lat: 46, Lng: -94})

	pins, err := s.List(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 1 {
		t.Fatalf("got %d pins for carol, want 1", len(pins))
	}

	pins, err = s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 2 {
		t.Fatalf("got %d pins for alice, want 2", len(pins))
	}
}

func TestListHidesOwnerlessPrivatePins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// An only_me pin with no owner is visible to nobody; in particular an
	// anonymous viewer (empty id) must not match it as its "owner".
	s.Create(ctx, pin.Entity{Lat: 45, Lng: -93, Visibility: pin.VisibilityOnlyMe})
	s.Create(ctx, pin.Entity{OwnerID: "bob", Lat: 46, Lng: -94})

	for _, viewer := range []string{"", "carol"} {
		pins, err := s.List(ctx, viewer)
		if err != nil {
			t.Fatal(err)
		}
		if len(pins) != 1 || pins[0].OwnerID != "bob" {
			t.Fatalf("viewer %q sees %d pins, want only bob's public pin", viewer, len(pins))
		}
	}
}

func TestArchiveHidesAndIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93})

	archived, err := s.Archive(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !archived {
		t.Fatal("first archive should flip the row")
	}

	archived, err = s.Archive(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if archived {
		t.Fatal("second archive should be a no-op")
	}

	if _, ok, _ := s.Get(ctx, created.ID); ok {
		t.Fatal("archived pin still readable")
	}
	pins, _ := s.List(ctx, "alice")
	if len(pins) != 0 {
		t.Fatalf("archived pin still listed: %v", pins)
	}
}

func TestRecordView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93})

	for want := 1; want <= 3; want++ {
		views, err := s.RecordView(ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if views != want {
			t.Fatalf("views=%d, want %d", views, want)
		}
	}

	views, err := s.ViewCount(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if views != 3 {
		t.Fatalf("count=%d, want 3", views)
	}

	if _, err := s.RecordView(ctx, "no-such-pin"); err == nil {
		t.Fatal("want error for unknown pin")
	}
}
