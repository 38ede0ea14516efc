package maplayer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loveofminnesota/pinmap/internal/bus"
	"github.com/loveofminnesota/pinmap/internal/engine"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// State of one logical layer's lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateHidden
)

// DefaultDebounce is the quiet period used to coalesce styledata bursts.
// Renderers fire several styledata events per style swap; only the last one
// matters. The exact value only has to outlast one burst.
const DefaultDebounce = 250 * time.Millisecond

// Style configures how a logical layer renders its entities.
type Style struct {
	Color      string  // circle color (CSS)
	Radius     float64 // circle radius in pixels
	LabelField string  // feature property rendered as the symbol label
	IconID     string  // image registry id for the symbol icon
	Icon       IconSource
}

// Config configures a Controller.
type Config struct {
	// SourceID names the engine source this controller owns, e.g.
	// "profile-pins" or one per atlas category.
	SourceID string
	Style    Style
	// Hidden starts the layer invisible; no engine state is created until
	// the layer is both visible and non-empty.
	Hidden bool
	// Debounce overrides DefaultDebounce for styledata coalescing.
	Debounce time.Duration
	// OnClick receives layer-scoped click events, attached exactly once.
	OnClick engine.Handler
	// OnHover receives mouse enter/leave transitions over the point layer.
	OnHover func(entering bool, ev engine.Event)
	// Bus, when set, receives a style-changed event per confirmed rebuild.
	Bus    *bus.Bus
	Logger zerolog.Logger
}

// Controller owns one logical layer: a named source, its point and label
// layers, and their icons. It is the only component allowed to create or
// destroy that engine state. The engine wipes sources, layers and images on
// every style swap, so the controller listens for styledata, debounces the
// burst, confirms the source is actually gone, and rebuilds.
type Controller struct {
	m     engine.Map
	cfg   Config
	log   zerolog.Logger
	icons *IconCache

	mu         sync.Mutex
	state      State
	entities   []pin.Entity
	visible    bool
	reiniting  bool
	handlersOn bool
	closed     bool
	offs       []func()
	debounce   *time.Timer
}

// NewController creates a controller; call Start to subscribe it to the
// engine's lifecycle events.
func NewController(m engine.Map, cfg Config) (*Controller, error) {
	if cfg.SourceID == "" {
		return nil, fmt.Errorf("maplayer: SourceID is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	c := &Controller{
		m:       m,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("source", cfg.SourceID).Logger(),
		icons:   NewIconCache(m, cfg.Logger),
		visible: !cfg.Hidden,
	}
	return c, nil
}

func (c *Controller) pointLayerID() string { return c.cfg.SourceID + "-points" }
func (c *Controller) labelLayerID() string { return c.cfg.SourceID + "-labels" }

// Start subscribes to engine lifecycle events and initializes immediately if
// the style is already loaded.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.offs = append(c.offs,
		c.m.On(engine.EventLoad, "", func(engine.Event) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.maybeInitLocked()
		}),
		c.m.On(engine.EventStyleData, "", func(engine.Event) {
			c.onStyleData()
		}),
	)
	c.maybeInitLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetEntities replaces the entity list. In Ready or Hidden the source
// payload is fully replaced; nothing is recreated. From Uninitialized a
// non-empty list triggers initialization.
func (c *Controller) SetEntities(entities []pin.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.entities = append([]pin.Entity(nil), entities...)
	switch c.state {
	case StateReady, StateHidden:
		if err := SyncSource(c.m, c.cfg.SourceID, Collection(c.entities)); err != nil {
			c.log.Error().Err(err).Msg("source sync failed")
		}
	case StateUninitialized:
		c.maybeInitLocked()
	}
}

// SetVisible toggles layout visibility. Hiding a Ready layer keeps its
// source, layers and handlers; destroying them for a toggle is wasted work.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.visible = visible
	switch c.state {
	case StateReady:
		if !visible {
			c.setLayersVisibleLocked(false)
			c.state = StateHidden
		}
	case StateHidden:
		if visible {
			c.setLayersVisibleLocked(true)
			c.state = StateReady
		}
	case StateUninitialized:
		if visible {
			c.maybeInitLocked()
		}
	}
}

func (c *Controller) setLayersVisibleLocked(visible bool) {
	if c.m.Removed() {
		return
	}
	for _, id := range []string{c.pointLayerID(), c.labelLayerID()} {
		if c.m.HasLayer(id) {
			if err := c.m.SetLayerVisible(id, visible); err != nil {
				c.log.Error().Err(err).Str("layer", id).Msg("visibility toggle failed")
			}
		}
	}
}

// maybeInitLocked runs initialization when the style is loaded, the layer is
// requested visible, and there is something to render. An empty entity list
// creates nothing; some engines warn on empty sources.
func (c *Controller) maybeInitLocked() {
	if c.closed || c.state != StateUninitialized || c.reiniting {
		return
	}
	if c.m.Removed() || !c.m.StyleLoaded() {
		return
	}
	if !c.visible || len(c.entities) == 0 {
		return
	}
	c.initLocked()
}

func (c *Controller) initLocked() {
	c.state = StateInitializing
	if err := c.createLocked(); err != nil {
		c.log.Error().Err(err).Msg("layer initialization failed")
		c.state = StateUninitialized
		return
	}
	c.state = StateReady
}

func (c *Controller) createLocked() error {
	st := c.cfg.Style
	if st.IconID != "" && st.Icon != nil {
		// Icon failures degrade the visual only; never abort creation.
		c.icons.Ensure(st.IconID, st.Icon)
	}

	if !c.m.HasSource(c.cfg.SourceID) {
		if err := c.m.AddSource(c.cfg.SourceID, Collection(c.entities)); err != nil {
			return fmt.Errorf("adding source: %w", err)
		}
	}

	paint := map[string]any{"circle-radius": st.Radius, "circle-color": st.Color}
	if st.Radius == 0 {
		paint["circle-radius"] = 6.0
	}
	if st.Color == "" {
		paint["circle-color"] = "#3388ff"
	}
	if err := c.m.AddLayer(engine.Layer{
		ID:     c.pointLayerID(),
		Source: c.cfg.SourceID,
		Type:   engine.LayerCircle,
		Paint:  paint,
	}); err != nil {
		return fmt.Errorf("adding point layer: %w", err)
	}

	layout := map[string]any{"text-offset": []float64{0, 1.2}}
	if st.LabelField != "" {
		layout["text-field"] = "{" + st.LabelField + "}"
	}
	if st.IconID != "" {
		layout["icon-image"] = st.IconID
	}
	if err := c.m.AddLayer(engine.Layer{
		ID:     c.labelLayerID(),
		Source: c.cfg.SourceID,
		Type:   engine.LayerSymbol,
		Layout: layout,
	}); err != nil {
		return fmt.Errorf("adding label layer: %w", err)
	}

	c.attachHandlersLocked()
	return nil
}

// attachHandlersLocked attaches interaction handlers exactly once per
// controller. Layer-scoped subscriptions survive style swaps, unlike the
// layers themselves.
func (c *Controller) attachHandlersLocked() {
	if c.handlersOn {
		return
	}
	c.handlersOn = true
	forward := func(ev engine.Event) {
		c.mu.Lock()
		closed := c.closed
		fn := c.cfg.OnClick
		c.mu.Unlock()
		if !closed && fn != nil {
			fn(ev)
		}
	}
	c.offs = append(c.offs,
		c.m.On(engine.EventClick, c.pointLayerID(), forward),
		c.m.On(engine.EventClick, c.labelLayerID(), forward),
	)
	if c.cfg.OnHover != nil {
		c.offs = append(c.offs,
			c.m.On(engine.EventMouseEnter, c.pointLayerID(), func(ev engine.Event) {
				c.cfg.OnHover(true, ev)
			}),
			c.m.On(engine.EventMouseLeave, c.pointLayerID(), func(ev engine.Event) {
				c.cfg.OnHover(false, ev)
			}),
		)
	}
}

// onStyleData coalesces the styledata burst into one settle check.
func (c *Controller) onStyleData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.m.Removed() {
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.cfg.Debounce, c.styleSettled)
}

// styleSettled runs after the styledata burst went quiet. A style swap
// discards every source outside this controller's control; confirm the loss
// before rebuilding so spurious styledata events stay no-ops.
func (c *Controller) styleSettled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.m.Removed() || !c.m.StyleLoaded() {
		return
	}
	if c.m.HasSource(c.cfg.SourceID) {
		return
	}
	if c.reiniting {
		return
	}
	c.reiniting = true
	defer func() { c.reiniting = false }()

	hadState := c.state
	c.state = StateUninitialized
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(bus.Event{Kind: bus.KindStyleChanged, ID: c.cfg.SourceID})
	}
	if hadState == StateUninitialized {
		// Never built anything; the normal init conditions apply.
		c.maybeInitLockedAfterReinit()
		return
	}
	if c.visible && len(c.entities) > 0 {
		c.initLocked()
		if c.state == StateReady && hadState == StateHidden {
			// Preserve the pre-swap visibility request.
			c.setLayersVisibleLocked(false)
			c.state = StateHidden
		}
	}
}

// maybeInitLockedAfterReinit mirrors maybeInitLocked without the reiniting
// guard, which the caller already holds.
func (c *Controller) maybeInitLockedAfterReinit() {
	if c.state != StateUninitialized || c.m.Removed() || !c.m.StyleLoaded() {
		return
	}
	if !c.visible || len(c.entities) == 0 {
		return
	}
	c.initLocked()
}

// Close tears the layer down: handlers detached, layers and source removed.
// Teardown races engine disposal during unmount, so every engine call is
// preceded by a removed check and any panic that still escapes is swallowed;
// cleanup must not throw.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.debounce != nil {
		c.debounce.Stop()
	}
	offs := c.offs
	c.offs = nil
	c.state = StateUninitialized
	c.mu.Unlock()

	for _, off := range offs {
		off()
	}
	c.teardownEngineState()
}

func (c *Controller) teardownEngineState() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Debug().Any("panic", r).Msg("teardown raced engine disposal")
		}
	}()
	if c.m.Removed() {
		return
	}
	for _, id := range []string{c.labelLayerID(), c.pointLayerID()} {
		if c.m.HasLayer(id) {
			if err := c.m.RemoveLayer(id); err != nil {
				c.log.Debug().Err(err).Str("layer", id).Msg("layer removal failed")
			}
		}
	}
	if c.m.HasSource(c.cfg.SourceID) {
		if err := c.m.RemoveSource(c.cfg.SourceID); err != nil {
			c.log.Debug().Err(err).Msg("source removal failed")
		}
	}
}
