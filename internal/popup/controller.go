// Package popup owns the interaction side of a pin layer: click-to-open
// popups with an at-most-one-open invariant, deep-link synchronization with
// the URL query parameters, best-effort view tracking, and the owner delete
// flow.
package popup

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/engine"
	"github.com/loveofminnesota/pinmap/internal/nav"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// DefaultGuardWindow is how long the controller ignores history changes
// after its own URL write. The value is tuned to outlast one round of the
// engine and history event firing; it is not a contract.
const DefaultGuardWindow = 300 * time.Millisecond

// Backend is the slice of the pin API the controller needs: best-effort view
// tracking and idempotent soft deletion.
type Backend interface {
	RecordView(ctx context.Context, id string) (views int, err error)
	ArchivePin(ctx context.Context, id string) error
}

// Config configures a Controller.
type Config struct {
	// Kind is the selection kind written to the URL.
	Kind string
	// Viewer identifies the current user; empty means anonymous.
	Viewer  string
	History nav.History
	Backend Backend
	Content Content
	// GuardWindow overrides DefaultGuardWindow.
	GuardWindow time.Duration
	// EaseZoom, when positive, eases the viewport to the opened feature.
	EaseZoom float64
	// OnRemoved notifies the parent to drop a deleted entity from its state.
	OnRemoved func(id string)
	// OnError surfaces a blocking user-facing message (delete failures).
	OnError func(msg string)
	Bus     *bus.Bus
	Logger  zerolog.Logger
}

// Controller keeps popup state, URL state and the entity list convergent.
type Controller struct {
	m   engine.Map
	cfg Config
	log zerolog.Logger

	mu            sync.Mutex
	entities      []pin.Entity
	openID        string
	popup         engine.Popup
	lastSelfWrite time.Time
	stopWatch     func()
	closed        bool
}

// NewController creates a controller; call Start to begin watching the URL.
func NewController(m engine.Map, cfg Config) (*Controller, error) {
	if cfg.History == nil {
		return nil, fmt.Errorf("popup: History is required")
	}
	if cfg.Kind == "" {
		cfg.Kind = nav.SelectionKindPin
	}
	if cfg.GuardWindow <= 0 {
		cfg.GuardWindow = DefaultGuardWindow
	}
	if cfg.Content == nil {
		cfg.Content = NewTemplateContent()
	}
	return &Controller{m: m, cfg: cfg, log: cfg.Logger}, nil
}

// Start watches the URL and processes any selection already encoded in it,
// so a page load with deep-link parameters opens the popup without a click.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.closed || c.stopWatch != nil {
		c.mu.Unlock()
		return
	}
	c.stopWatch = c.cfg.History.Watch(c.onHistoryChange)
	c.mu.Unlock()

	c.processValues(c.cfg.History.Values())
}

// SetEntities replaces the in-memory entity list used to resolve clicks and
// deep links. A selection that arrived before the list loaded is resolved
// now.
func (c *Controller) SetEntities(entities []pin.Entity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.entities = append([]pin.Entity(nil), entities...)
	pending := c.openID == "" && c.stopWatch != nil
	c.mu.Unlock()

	if pending {
		c.processValues(c.cfg.History.Values())
	}
}

// HandleClick resolves the topmost clicked feature to an entity and opens
// its popup. Wire it as the layer controller's OnClick.
func (c *Controller) HandleClick(ev engine.Event) {
	if len(ev.Features) == 0 {
		return
	}
	id := ev.Features[0].ID()
	if id == "" {
		return
	}
	c.Open(id)
}

// Open opens the popup for the entity, enforcing at-most-one-open. Opening
// the already-open entity is a no-op; an id with no matching entity in the
// current list is silently ignored.
func (c *Controller) Open(id string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.openID == id {
		c.mu.Unlock()
		return
	}
	e, ok := c.findLocked(id)
	if !ok {
		c.mu.Unlock()
		c.log.Debug().Str("pin", id).Msg("clicked feature has no matching entity")
		return
	}
	// Detach the previous popup before claiming the new id so its close
	// callback does not clear the URL we are about to write.
	old := c.popup
	c.popup = nil
	c.openID = ""
	c.mu.Unlock()

	if old != nil {
		old.Remove()
	}
	if c.m.Removed() {
		// The old popup is gone and no new one can open; drop the stale
		// selection so the URL does not point at a closed popup.
		c.mu.Lock()
		c.lastSelfWrite = time.Now()
		vals := nav.Clear(c.cfg.History.Values())
		c.mu.Unlock()
		c.cfg.History.Replace(vals)
		return
	}

	c.mu.Lock()
	c.openID = id
	c.lastSelfWrite = time.Now()
	vals := nav.Selection{Kind: c.cfg.Kind, ID: id}.Apply(c.cfg.History.Values())
	c.mu.Unlock()
	c.cfg.History.Replace(vals)

	pt, hasPos := e.Position()
	if hasPos && c.cfg.EaseZoom > 0 {
		c.m.EaseTo(pt, c.cfg.EaseZoom)
	}

	owner := e.Owned(c.cfg.Viewer)
	p := c.m.NewPopup()
	if hasPos {
		p.SetLngLat(pt)
	}
	p.SetHTML(c.render(e, e.Views, owner))
	p.OnClose(func() { c.popupClosed(id) })
	p.AddTo(c.m)

	c.mu.Lock()
	if c.closed || c.openID != id {
		c.mu.Unlock()
		p.Remove()
		return
	}
	c.popup = p
	c.mu.Unlock()

	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(bus.Event{Kind: bus.KindPopupOpening, ID: id})
	}
	if !owner && c.cfg.Backend != nil {
		go c.trackView(e, p)
	}
}

// Close removes the open popup, if any. The popup's close callback clears
// the open marker and the URL.
func (c *Controller) Close() {
	c.mu.Lock()
	p := c.popup
	c.mu.Unlock()
	if p != nil {
		p.Remove()
	}
}

// Delete archives the entity through the backend (idempotent server-side),
// then closes the popup, clears the URL and notifies the parent. Failures
// surface through OnError; there is no automatic retry.
func (c *Controller) Delete(ctx context.Context, id string) {
	c.mu.Lock()
	e, ok := c.findLocked(id)
	c.mu.Unlock()
	if !ok {
		return
	}
	if !e.Owned(c.cfg.Viewer) {
		c.log.Warn().Str("pin", id).Msg("delete rejected for non-owner")
		return
	}
	if c.cfg.Backend == nil {
		return
	}
	if err := c.cfg.Backend.ArchivePin(ctx, id); err != nil {
		c.log.Error().Err(err).Str("pin", id).Msg("pin delete failed")
		if c.cfg.OnError != nil {
			c.cfg.OnError("Could not delete this pin. Please try again.")
		}
		return
	}

	c.mu.Lock()
	kept := c.entities[:0]
	for _, other := range c.entities {
		if other.ID != id {
			kept = append(kept, other)
		}
	}
	c.entities = kept
	p := c.popup
	closeIt := c.openID == id && p != nil
	c.mu.Unlock()

	if closeIt {
		p.Remove()
	}
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(bus.Event{Kind: bus.KindPinArchived, ID: id})
	}
	if c.cfg.OnRemoved != nil {
		c.cfg.OnRemoved(id)
	}
}

// OpenID returns the id of the currently open popup, or "".
func (c *Controller) OpenID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID
}

// Stop detaches the URL watcher and removes the popup without touching the
// URL; the session is going away, not the selection.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stopWatch
	c.stopWatch = nil
	p := c.popup
	c.popup = nil
	c.openID = ""
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if p != nil {
		p.Remove()
	}
}

func (c *Controller) findLocked(id string) (pin.Entity, bool) {
	for _, e := range c.entities {
		if e.ID == id {
			return e, true
		}
	}
	return pin.Entity{}, false
}

func (c *Controller) render(e pin.Entity, views int, owner bool) string {
	html, err := c.cfg.Content.Render(e, views, owner)
	if err != nil {
		c.log.Error().Err(err).Str("pin", e.ID).Msg("popup render failed")
		return ""
	}
	return html
}

// popupClosed runs when the popup for id is removed, by the user or
// programmatically. It only acts while id is still the open entity, so
// swapping popups does not clear the fresh URL write.
func (c *Controller) popupClosed(id string) {
	c.mu.Lock()
	if c.closed || c.openID != id {
		c.mu.Unlock()
		return
	}
	c.openID = ""
	c.popup = nil
	c.lastSelfWrite = time.Now()
	vals := nav.Clear(c.cfg.History.Values())
	c.mu.Unlock()
	c.cfg.History.Replace(vals)
}

// onHistoryChange ignores changes inside the guard window after the
// controller's own write; everything else is an external navigation.
func (c *Controller) onHistoryChange(v url.Values) {
	c.mu.Lock()
	self := time.Since(c.lastSelfWrite) < c.cfg.GuardWindow
	c.mu.Unlock()
	if self {
		return
	}
	c.processValues(v)
}

func (c *Controller) processValues(v url.Values) {
	sel, ok := nav.FromValues(v)
	if !ok {
		// Parameters cleared externally: close whatever is open.
		c.Close()
		return
	}
	if sel.Kind != c.cfg.Kind {
		return
	}
	c.Open(sel.ID)
}

// trackView records one view and re-renders the popup with the updated
// count. Analytics is best-effort: failures are logged and never surface.
func (c *Controller) trackView(e pin.Entity, p engine.Popup) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	views, err := c.cfg.Backend.RecordView(ctx, e.ID)
	if err != nil {
		c.log.Debug().Err(err).Str("pin", e.ID).Msg("view tracking failed")
		return
	}
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(bus.Event{Kind: bus.KindPinViewed, ID: e.ID})
	}

	c.mu.Lock()
	stillOpen := !c.closed && c.openID == e.ID && c.popup == p
	c.mu.Unlock()
	if stillOpen {
		p.SetHTML(c.render(e, views, false))
	}
}
