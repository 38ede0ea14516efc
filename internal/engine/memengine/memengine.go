// Package memengine is an in-memory implementation of the engine boundary.
// It keeps the full source/layer/image registry, dispatches events, and can
// simulate the renderer behaviors the controllers have to survive: style
// swaps that wipe all registered state, styledata bursts, and calls into a
// removed instance panicking.
package memengine

import (
	"fmt"
	"image"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/loveofminnesota/pinmap/internal/engine"
)

// hitTolerance is the degree radius used for hit testing point features.
const hitTolerance = 1e-6

type subscription struct {
	id      int
	typ     engine.EventType
	layerID string
	fn      engine.Handler
}

// Engine is an in-memory engine.Map.
type Engine struct {
	mu          sync.Mutex
	removed     bool
	styleLoaded bool

	sources    map[string]*geojson.FeatureCollection
	layerOrder []string
	layers     map[string]engine.Layer
	visible    map[string]bool
	images     map[string]image.Image

	subs    []subscription
	nextSub int

	center orb.Point
	zoom   float64

	popups  []*Popup
	markers []*Marker

	sourceAdds map[string]int

	// StyleDataBurst is how many styledata events one style swap fires.
	// Real renderers fire several; controllers must coalesce them.
	StyleDataBurst int
}

// New creates an engine whose style is not yet loaded. Call FinishLoad to
// simulate the initial style load.
func New() *Engine {
	return &Engine{
		sources:        make(map[string]*geojson.FeatureCollection),
		layers:         make(map[string]engine.Layer),
		visible:        make(map[string]bool),
		images:         make(map[string]image.Image),
		sourceAdds:     make(map[string]int),
		StyleDataBurst: 3,
	}
}

func (e *Engine) ensureLive() {
	if e.removed {
		panic("memengine: call into removed map instance")
	}
}

// Removed reports whether the instance was destroyed. Safe on any instance.
func (e *Engine) Removed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

// StyleLoaded reports whether the style has finished loading.
func (e *Engine) StyleLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.removed && e.styleLoaded
}

func (e *Engine) AddSource(id string, data *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	e.sources[id] = data
	e.sourceAdds[id]++
	return nil
}

func (e *Engine) SetSourceData(id string, data *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.sources[id]; !ok {
		return fmt.Errorf("source %q not found", id)
	}
	e.sources[id] = data
	return nil
}

func (e *Engine) RemoveSource(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.sources[id]; !ok {
		return fmt.Errorf("source %q not found", id)
	}
	delete(e.sources, id)
	return nil
}

func (e *Engine) HasSource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	_, ok := e.sources[id]
	return ok
}

func (e *Engine) AddLayer(l engine.Layer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.layers[l.ID]; ok {
		return fmt.Errorf("layer %q already exists", l.ID)
	}
	if _, ok := e.sources[l.Source]; !ok {
		return fmt.Errorf("layer %q references missing source %q", l.ID, l.Source)
	}
	e.layers[l.ID] = l
	e.layerOrder = append(e.layerOrder, l.ID)
	e.visible[l.ID] = true
	return nil
}

func (e *Engine) RemoveLayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.layers[id]; !ok {
		return fmt.Errorf("layer %q not found", id)
	}
	delete(e.layers, id)
	delete(e.visible, id)
	for i, lid := range e.layerOrder {
		if lid == id {
			e.layerOrder = append(e.layerOrder[:i], e.layerOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	_, ok := e.layers[id]
	return ok
}

func (e *Engine) SetLayerVisible(id string, visible bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.layers[id]; !ok {
		return fmt.Errorf("layer %q not found", id)
	}
	e.visible[id] = visible
	return nil
}

func (e *Engine) AddImage(id string, img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	if _, ok := e.images[id]; ok {
		return fmt.Errorf("image %q already exists", id)
	}
	e.images[id] = img
	return nil
}

func (e *Engine) HasImage(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	_, ok := e.images[id]
	return ok
}

func (e *Engine) EaseTo(center orb.Point, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	e.center = center
	e.zoom = zoom
}

// QueryRenderedFeatures returns features of visible layers at the point,
// topmost (most recently added layer) first.
func (e *Engine) QueryRenderedFeatures(at orb.Point, layerIDs ...string) []engine.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	return e.featuresAtLocked(at, layerIDs...)
}

func (e *Engine) featuresAtLocked(at orb.Point, layerIDs ...string) []engine.Feature {
	ids := layerIDs
	if len(ids) == 0 {
		ids = e.layerOrder
	}
	var out []engine.Feature
	// Reverse add order: the last layer added renders on top.
	for i := len(ids) - 1; i >= 0; i-- {
		l, ok := e.layers[ids[i]]
		if !ok || !e.visible[l.ID] {
			continue
		}
		fc, ok := e.sources[l.Source]
		if !ok {
			continue
		}
		for _, f := range fc.Features {
			pt, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			if near(pt, at) {
				out = append(out, engine.Feature{Point: pt, Properties: f.Properties})
			}
		}
	}
	return out
}

func near(a, b orb.Point) bool {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx+dy*dy <= hitTolerance*hitTolerance
}

// On subscribes fn; the returned func unsubscribes.
func (e *Engine) On(t engine.EventType, layerID string, fn engine.Handler) func() {
	e.mu.Lock()
	e.ensureLive()
	id := e.nextSub
	e.nextSub++
	e.subs = append(e.subs, subscription{id: id, typ: t, layerID: layerID, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
	}
}

func (e *Engine) dispatch(ev engine.Event) {
	e.mu.Lock()
	var fns []engine.Handler
	for _, s := range e.subs {
		if s.typ != ev.Type {
			continue
		}
		if (ev.Type == engine.EventClick || ev.Type == engine.EventMouseEnter || ev.Type == engine.EventMouseLeave) &&
			s.layerID != ev.LayerID {
			continue
		}
		fns = append(fns, s.fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// --- simulation controls ---

// FinishLoad marks the initial style loaded and fires the load event.
func (e *Engine) FinishLoad() {
	e.mu.Lock()
	e.ensureLive()
	e.styleLoaded = true
	e.mu.Unlock()
	e.dispatch(engine.Event{Type: engine.EventLoad})
}

// SwapStyle simulates a basemap style change: every source, layer and image
// is discarded and a burst of styledata events fires.
func (e *Engine) SwapStyle() {
	e.mu.Lock()
	e.ensureLive()
	e.sources = make(map[string]*geojson.FeatureCollection)
	e.layers = make(map[string]engine.Layer)
	e.layerOrder = nil
	e.visible = make(map[string]bool)
	e.images = make(map[string]image.Image)
	e.styleLoaded = true
	burst := e.StyleDataBurst
	e.mu.Unlock()

	for i := 0; i < burst; i++ {
		e.dispatch(engine.Event{Type: engine.EventStyleData})
	}
}

// Click simulates a user click at the point, delivering layer-scoped click
// events for every visible layer with a feature there.
func (e *Engine) Click(at orb.Point) {
	e.mu.Lock()
	e.ensureLive()
	order := append([]string(nil), e.layerOrder...)
	e.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		e.mu.Lock()
		feats := e.featuresAtLocked(at, id)
		e.mu.Unlock()
		if len(feats) == 0 {
			continue
		}
		e.dispatch(engine.Event{Type: engine.EventClick, LayerID: id, Point: at, Features: feats})
	}
}

// Hover simulates mouse enter (entering=true) or leave over a layer.
func (e *Engine) Hover(layerID string, at orb.Point, entering bool) {
	t := engine.EventMouseEnter
	if !entering {
		t = engine.EventMouseLeave
	}
	e.mu.Lock()
	feats := e.featuresAtLocked(at, layerID)
	e.mu.Unlock()
	e.dispatch(engine.Event{Type: t, LayerID: layerID, Point: at, Features: feats})
}

// Remove destroys the instance. Any engine call after this panics, matching
// real renderer behavior; only Removed and StyleLoaded stay safe.
func (e *Engine) Remove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	e.subs = nil
}

// --- inspection helpers for tests ---

// SourceData returns the current payload of a source, or nil.
func (e *Engine) SourceData(id string) *geojson.FeatureCollection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sources[id]
}

// SourceAddCount counts AddSource calls for id across the engine's lifetime.
func (e *Engine) SourceAddCount(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceAdds[id]
}

// LayerVisible reports the layout visibility of a layer.
func (e *Engine) LayerVisible(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible[id]
}

// OpenPopups returns the popups currently attached to the map.
func (e *Engine) OpenPopups() []*Popup {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Popup, len(e.popups))
	copy(out, e.popups)
	return out
}

// OpenMarkers returns the markers currently attached to the map.
func (e *Engine) OpenMarkers() []*Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Marker, len(e.markers))
	copy(out, e.markers)
	return out
}

// Center returns the last eased-to viewport center.
func (e *Engine) Center() orb.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.center
}
