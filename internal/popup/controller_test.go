package popup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/loveofminnesota/pinmap/internal/engine/memengine"
	"github.com/loveofminnesota/pinmap/internal/nav"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

const testGuard = 10 * time.Millisecond

// waitGuard sleeps past the self-write guard so the next history change
// counts as external.
func waitGuard() { time.Sleep(3 * testGuard) }

type fakeBackend struct {
	views       map[string]int
	archived    map[string]bool
	viewErr     error
	archiveErr  error
	viewCalls   int
	archiveHits []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{views: map[string]int{}, archived: map[string]bool{}}
}

func (b *fakeBackend) RecordView(ctx context.Context, id string) (int, error) {
	b.viewCalls++
	if b.viewErr != nil {
		return 0, b.viewErr
	}
	b.views[id]++
	return b.views[id], nil
}

func (b *fakeBackend) ArchivePin(ctx context.Context, id string) error {
	if b.archiveErr != nil {
		return b.archiveErr
	}
	b.archiveHits = append(b.archiveHits, id)
	b.archived[id] = true
	return nil
}

func testPins() []pin.Entity {
	return []pin.Entity{
		{ID: "p1", OwnerID: "alice", Lat: 44.9, Lng: -93.2, Description: "stone arch"},
		{ID: "p2", OwnerID: "bob", Lat: 45.0, Lng: -93.3, Description: "state fair"},
	}
}

type testRig struct {
	m       *memengine.Engine
	hist    *nav.MemoryHistory
	backend *fakeBackend
	c       *Controller
}

func newRig(t *testing.T, viewer string, initial url.Values, mutate func(*Config)) *testRig {
	t.Helper()
	m := memengine.New()
	m.FinishLoad()
	hist := nav.NewMemoryHistory(initial)
	backend := newFakeBackend()
	cfg := Config{
		Viewer:      viewer,
		History:     hist,
		Backend:     backend,
		GuardWindow: testGuard,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewController(m, cfg)
	if err != nil {
		t.Fatal(err)
	}
	c.SetEntities(testPins())
	c.Start()
	t.Cleanup(c.Stop)
	return &testRig{m: m, hist: hist, backend: backend, c: c}
}

func (r *testRig) selection() (nav.Selection, bool) {
	return nav.FromValues(r.hist.Values())
}

func TestOpenThenOpenOtherLeavesOnePopup(t *testing.T) {
	r := newRig(t, "alice", nil, nil)

	r.c.Open("p1")
	r.c.Open("p2")

	popups := r.m.OpenPopups()
	if len(popups) != 1 {
		t.Fatalf("open popups = %d, want exactly 1", len(popups))
	}
	if !strings.Contains(popups[0].HTML(), `data-pin="p2"`) {
		t.Fatalf("popup bound to wrong entity: %s", popups[0].HTML())
	}
	if sel, ok := r.selection(); !ok || sel.ID != "p2" {
		t.Fatalf("URL selection = %+v, want p2", sel)
	}
}

func TestOpenSameEntityIsIdempotent(t *testing.T) {
	var writes int
	r := newRig(t, "alice", nil, nil)
	stop := r.hist.Watch(func(url.Values) { writes++ })
	defer stop()

	r.c.Open("p1")
	first := writes
	r.c.Open("p1")

	if len(r.m.OpenPopups()) != 1 {
		t.Fatalf("duplicate popup created")
	}
	if writes != first {
		t.Fatalf("duplicate URL write on idempotent click")
	}
}

func TestUnknownIDIsIgnored(t *testing.T) {
	r := newRig(t, "alice", nil, nil)
	r.c.Open("missing")
	if len(r.m.OpenPopups()) != 0 {
		t.Fatalf("popup opened for unknown entity")
	}
	if _, ok := r.selection(); ok {
		t.Fatalf("URL written for unknown entity")
	}
}

func TestDeepLinkOpensOnStart(t *testing.T) {
	initial := nav.Selection{Kind: nav.SelectionKindPin, ID: "p1"}.Apply(nil)
	r := newRig(t, "", initial, nil)

	if r.c.OpenID() != "p1" {
		t.Fatalf("openID = %q, want p1 from deep link", r.c.OpenID())
	}
	popups := r.m.OpenPopups()
	if len(popups) != 1 || !strings.Contains(popups[0].HTML(), "stone arch") {
		t.Fatalf("popup not bound to p1's content")
	}
	// Round-trip stability: the URL converges to what it started with.
	if sel, ok := r.selection(); !ok || sel.ID != "p1" || sel.Kind != nav.SelectionKindPin {
		t.Fatalf("URL selection = %+v after deep link", sel)
	}
}

func TestDeepLinkBeforeEntitiesLoaded(t *testing.T) {
	m := memengine.New()
	m.FinishLoad()
	hist := nav.NewMemoryHistory(nav.Selection{Kind: nav.SelectionKindPin, ID: "p2"}.Apply(nil))
	c, err := NewController(m, Config{History: hist, GuardWindow: testGuard})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	c.Start() // list not loaded yet; must not error or open anything
	if c.OpenID() != "" {
		t.Fatalf("opened popup without entities")
	}

	c.SetEntities(testPins()) // list arrives; pending selection resolves
	if c.OpenID() != "p2" {
		t.Fatalf("openID = %q, want p2 once entities load", c.OpenID())
	}
}

func TestExternalNavigationOpensAndCloses(t *testing.T) {
	r := newRig(t, "", nil, nil)

	// External write of a selection opens the popup.
	r.hist.Replace(nav.Selection{Kind: nav.SelectionKindPin, ID: "p1"}.Apply(r.hist.Values()))
	if r.c.OpenID() != "p1" {
		t.Fatalf("external selection did not open popup")
	}

	// External clear closes it.
	waitGuard()
	r.hist.Replace(url.Values{})
	if r.c.OpenID() != "" || len(r.m.OpenPopups()) != 0 {
		t.Fatalf("external clear did not close popup")
	}
}

func TestCloseClearsURL(t *testing.T) {
	r := newRig(t, "alice", nil, nil)
	r.c.Open("p1")
	r.c.Close()

	if _, ok := r.selection(); ok {
		t.Fatalf("URL selection should be cleared after close")
	}
	if r.c.OpenID() != "" {
		t.Fatalf("open marker should be cleared after close")
	}
}

func TestUserCloseClearsURL(t *testing.T) {
	r := newRig(t, "alice", nil, nil)
	r.c.Open("p1")

	// User clicks the popup's close button: the engine fires the close
	// callback, which must converge URL state.
	r.m.OpenPopups()[0].Remove()

	if _, ok := r.selection(); ok {
		t.Fatalf("URL selection should be cleared after user close")
	}
}

func TestViewTrackingForNonOwner(t *testing.T) {
	r := newRig(t, "carol", nil, nil)
	r.c.Open("p1")

	deadline := time.Now().Add(2 * time.Second)
	for {
		popups := r.m.OpenPopups()
		if len(popups) == 1 && strings.Contains(popups[0].HTML(), "1 views") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("popup never re-rendered with view count")
		}
		time.Sleep(time.Millisecond)
	}
	if r.backend.viewCalls != 1 {
		t.Fatalf("view calls = %d, want 1", r.backend.viewCalls)
	}
}

func TestViewTrackingFailureIsSwallowed(t *testing.T) {
	r := newRig(t, "carol", nil, func(cfg *Config) {})
	r.backend.viewErr = fmt.Errorf("network down")

	r.c.Open("p1")
	time.Sleep(50 * time.Millisecond)

	if len(r.m.OpenPopups()) != 1 {
		t.Fatalf("popup must stay open when view tracking fails")
	}
}

func TestOwnerViewNotTracked(t *testing.T) {
	r := newRig(t, "alice", nil, nil)
	r.c.Open("p1") // alice owns p1
	time.Sleep(50 * time.Millisecond)
	if r.backend.viewCalls != 0 {
		t.Fatalf("owner views must not be tracked")
	}
}

func TestDeleteFlow(t *testing.T) {
	var removed []string
	r := newRig(t, "alice", nil, func(cfg *Config) {
		cfg.OnRemoved = func(id string) { removed = append(removed, id) }
	})
	r.c.Open("p1")

	r.c.Delete(context.Background(), "p1")

	if len(r.m.OpenPopups()) != 0 {
		t.Fatalf("popup should be removed after delete")
	}
	if _, ok := r.selection(); ok {
		t.Fatalf("URL should be cleared after delete")
	}
	if len(removed) != 1 || removed[0] != "p1" {
		t.Fatalf("parent not notified: %v", removed)
	}

	// Double submit: the entity is already gone locally; nothing else may
	// be archived or removed.
	r.c.Delete(context.Background(), "p1")
	if len(r.backend.archiveHits) != 1 {
		t.Fatalf("archive calls = %v, want one", r.backend.archiveHits)
	}
	if len(removed) != 1 {
		t.Fatalf("second delete removed something else: %v", removed)
	}
}

func TestDeleteRejectedForNonOwner(t *testing.T) {
	r := newRig(t, "carol", nil, nil)
	r.c.Delete(context.Background(), "p1")
	if len(r.backend.archiveHits) != 0 {
		t.Fatalf("non-owner delete must not reach the backend")
	}
}

func TestDeleteFailureSurfacesAlert(t *testing.T) {
	var alerts []string
	r := newRig(t, "alice", nil, func(cfg *Config) {
		cfg.OnError = func(msg string) { alerts = append(alerts, msg) }
	})
	r.backend.archiveErr = fmt.Errorf("backend down")
	r.c.Open("p1")

	r.c.Delete(context.Background(), "p1")

	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, want one user-facing message", alerts)
	}
	if len(r.m.OpenPopups()) != 1 {
		t.Fatalf("popup should survive a failed delete")
	}
	if r.c.OpenID() != "p1" {
		t.Fatalf("open state should survive a failed delete")
	}
}

func TestSelfWriteDoesNotReopen(t *testing.T) {
	r := newRig(t, "alice", nil, nil)

	// Count popup churn: the controller's own URL writes must not cause a
	// close/reopen cycle through the history watcher.
	r.c.Open("p1")
	p := r.m.OpenPopups()[0]
	time.Sleep(2 * testGuard)
	if popups := r.m.OpenPopups(); len(popups) != 1 || popups[0] != p {
		t.Fatalf("self URL write re-triggered the open handler")
	}
}

func TestOpenAfterEngineDisposalClearsURL(t *testing.T) {
	r := newRig(t, "alice", nil, nil)

	r.c.Open("p1")
	if _, ok := r.selection(); !ok {
		t.Fatal("open did not write a selection")
	}

	r.m.Remove()
	r.c.Open("p2")

	if _, ok := r.selection(); ok {
		t.Fatalf("URL selection survived open against a disposed engine: %v", r.hist.Values())
	}
	if r.c.OpenID() != "" {
		t.Fatalf("OpenID = %q, want empty after disposed-engine open", r.c.OpenID())
	}
}
