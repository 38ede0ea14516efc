package api

import (
	"context"
	"errors"
	"testing"

	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// fakeStore is an in-memory PinStore for handler tests.
type fakeStore struct {
	pins map[string]pin.Entity
	seq  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{pins: map[string]pin.Entity{}}
}

func (f *fakeStore) List(ctx context.Context, viewer string) ([]pin.Entity, error) {
	var out []pin.Entity
	for _, e := range f.pins {
		if e.VisibleTo(viewer) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (pin.Entity, bool, error) {
	e, ok := f.pins[id]
	return e, ok, nil
}

func (f *fakeStore) Create(ctx context.Context, e pin.Entity) (pin.Entity, error) {
	f.seq++
	e.ID = string(rune('a' + f.seq - 1))
	f.pins[e.ID] = e
	return e, nil
}

func (f *fakeStore) Archive(ctx context.Context, id string) (bool, error) {
	e, ok := f.pins[id]
	if !ok || e.Archived {
		return false, nil
	}
	e.Archived = true
	f.pins[id] = e
	return true, nil
}

func (f *fakeStore) RecordView(ctx context.Context, id string) (int, error) {
	e, ok := f.pins[id]
	if !ok {
		return 0, errors.New("pin not found")
	}
	e.Views++
	f.pins[id] = e
	return e.Views, nil
}

func (f *fakeStore) ViewCount(ctx context.Context, id string) (int, error) {
	e, ok := f.pins[id]
	if !ok {
		return 0, errors.New("pin not found")
	}
	return e.Views, nil
}

func newTestHandler() (*PinHandler, *fakeStore, *bus.Bus) {
	store := newFakeStore()
	b := bus.New()
	h := NewPinHandler(&Services{Pins: store, Bus: b})
	return h, store, b
}

func TestCreatePinSetsOwnerFromViewer(t *testing.T) {
	h, _, _ := newTestHandler()

	out, err := h.CreatePin(context.Background(), &struct {
		ViewerInput
		Body PinBody
	}{
		ViewerInput: ViewerInput{Viewer: "alice"},
		Body:        PinBody{Lat: 44.98, Lng: -93.26, Description: "hi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.OwnerID != "alice" {
		t.Fatalf("owner=%q, want alice", out.Body.OwnerID)
	}
	if out.Body.ID == "" {
		t.Fatal("no id assigned")
	}
}

func TestCreatePinRejectsMissingPosition(t *testing.T) {
	h, _, _ := newTestHandler()

	_, err := h.CreatePin(context.Background(), &struct {
		ViewerInput
		Body PinBody
	}{Body: PinBody{Lat: 0, Lng: 0}})
	if err == nil {
		t.Fatal("want error for (0,0) position")
	}
}

func TestListPinsFiltersByViewer(t *testing.T) {
	h, store, _ := newTestHandler()
	store.Create(context.Background(), pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93, Visibility: pin.VisibilityOnlyMe})
	store.Create(context.Background(), pin.Entity{OwnerID: "bob", Lat: 46, Lng: -94, Visibility: pin.VisibilityPublic})

	out, err := h.ListPins(context.Background(), &ViewerInput{Viewer: "carol"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Body) != 1 {
		t.Fatalf("got %d pins, want 1 (public only)", len(out.Body))
	}

	out, err = h.ListPins(context.Background(), &ViewerInput{Viewer: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Body) != 2 {
		t.Fatalf("got %d pins, want 2 (own private + public)", len(out.Body))
	}
}

func TestArchivePinIdempotent(t *testing.T) {
	h, store, b := newTestHandler()
	created, _ := store.Create(context.Background(), pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93})

	events := b.Subscribe()
	defer b.Unsubscribe(events)

	out, err := h.ArchivePin(context.Background(), &PinIDInput{ID: created.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Body.Archived {
		t.Fatal("first archive should report Archived=true")
	}
	ev := <-events
	if ev.Kind != bus.KindPinArchived || ev.ID != created.ID {
		t.Fatalf("event=%+v", ev)
	}

	out, err = h.ArchivePin(context.Background(), &PinIDInput{ID: created.ID})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.Archived {
		t.Fatal("second archive should report Archived=false")
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestRecordViewIncrements(t *testing.T) {
	h, store, _ := newTestHandler()
	created, _ := store.Create(context.Background(), pin.Entity{OwnerID: "alice", Lat: 45, Lng: -93})

	for want := 1; want <= 3; want++ {
		out, err := h.RecordView(context.Background(), &PinIDInput{ID: created.ID})
		if err != nil {
			t.Fatal(err)
		}
		if out.Body.Views != want {
			t.Fatalf("views=%d, want %d", out.Body.Views, want)
		}
	}

	out, err := h.GetViews(context.Background(), &PinIDInput{ID: created.ID})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.Views != 3 {
		t.Fatalf("views=%d, want 3", out.Body.Views)
	}
}

func TestGetPinNotFound(t *testing.T) {
	h, _, _ := newTestHandler()
	_, err := h.GetPin(context.Background(), &PinIDInput{ID: "nope"})
	if err == nil {
		t.Fatal("want not found error")
	}
}
