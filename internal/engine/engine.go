// Package engine defines the boundary to an imperative, retained-mode map
// renderer: named GeoJSON sources, layers derived from them, an image
// registry, markers, popups, viewport easing, hit testing and lifecycle
// events. The renderer owns all of that state and discards sources, layers
// and images wholesale when its style is swapped; callers are expected to
// listen for EventStyleData and rebuild.
package engine

import (
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// EventType identifies a map lifecycle or interaction event.
type EventType string

const (
	// EventLoad fires once when the initial style has finished loading.
	EventLoad EventType = "load"
	// EventStyleData fires, usually several times in a burst, while the
	// style is (re)loading. After a style swap it is the only signal that
	// sources and layers were discarded.
	EventStyleData EventType = "styledata"
	// EventClick fires for clicks on features of the subscribed layer.
	EventClick EventType = "click"
	// EventMouseEnter / EventMouseLeave fire on hover transitions over
	// features of the subscribed layer.
	EventMouseEnter EventType = "mouseenter"
	EventMouseLeave EventType = "mouseleave"
)

// Feature is a rendered feature returned by hit testing. Properties carry at
// minimum the "id" of the source entity; that id is the only link back to
// application data.
type Feature struct {
	Point      orb.Point
	Properties geojson.Properties
}

// ID returns the entity id the feature was rendered from.
func (f Feature) ID() string {
	if id, ok := f.Properties["id"].(string); ok {
		return id
	}
	return ""
}

// Event is delivered to subscribed handlers.
type Event struct {
	Type     EventType
	LayerID  string
	Point    orb.Point
	Features []Feature
}

// Handler receives map events. Handlers run on the engine's event dispatch
// and must not block.
type Handler func(Event)

// LayerType selects how a layer renders its source.
type LayerType string

const (
	LayerCircle LayerType = "circle" // point markers
	LayerSymbol LayerType = "symbol" // icons and text labels
)

// Layer describes a renderable interpretation of a source.
type Layer struct {
	ID     string
	Source string
	Type   LayerType
	Layout map[string]any
	Paint  map[string]any
}

// Marker is a single point marker independent of any source, used for
// ephemeral pins such as "new pin being placed".
type Marker interface {
	SetLngLat(orb.Point)
	Remove()
}

// Popup is an anchored content bubble. At most one is meant to be open per
// map; enforcing that is the caller's job.
type Popup interface {
	SetLngLat(orb.Point)
	SetHTML(html string)
	AddTo(m Map)
	Remove()
	// OnClose registers fn to run when the popup is removed, whether by the
	// user or programmatically.
	OnClose(fn func())
}

// Map is the engine instance. It is a single mutable object shared by every
// controller mounted against it. Calls into a removed instance panic, so
// callers must check Removed before touching the engine during teardown.
type Map interface {
	Removed() bool
	StyleLoaded() bool

	AddSource(id string, data *geojson.FeatureCollection) error
	SetSourceData(id string, data *geojson.FeatureCollection) error
	RemoveSource(id string) error
	HasSource(id string) bool

	AddLayer(l Layer) error
	RemoveLayer(id string) error
	HasLayer(id string) bool
	SetLayerVisible(id string, visible bool) error

	AddImage(id string, img image.Image) error
	HasImage(id string) bool

	NewMarker(at orb.Point) Marker
	NewPopup() Popup

	EaseTo(center orb.Point, zoom float64)
	QueryRenderedFeatures(at orb.Point, layerIDs ...string) []Feature

	// On subscribes fn to events of type t. layerID scopes click and hover
	// events to one layer and is ignored for lifecycle events. The returned
	// func unsubscribes.
	On(t EventType, layerID string, fn Handler) (off func())
}
