package maplayer

import (
	"github.com/paulmach/orb/geojson"

	"github.com/loveofminnesota/pinmap/internal/engine"
	"github.com/loveofminnesota/pinmap/internal/pin"
)

// Collection converts entities to the engine's geometry format. Entities
// without a renderable position are dropped, as are duplicate ids: every
// feature's "id" property is the only link used to resolve a click back to
// application data, so it must be unique within one source.
func Collection(entities []pin.Entity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		pt, ok := e.Position()
		if !ok {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}

		f := geojson.NewFeature(pt)
		f.Properties["id"] = e.ID
		if e.Description != "" {
			f.Properties["description"] = e.Description
		}
		if e.Emoji != "" {
			f.Properties["emoji"] = e.Emoji
		}
		if e.MediaURL != "" {
			f.Properties["mediaUrl"] = e.MediaURL
		}
		if e.Category != "" {
			f.Properties["category"] = e.Category
		}
		if e.Visibility != "" {
			f.Properties["visibility"] = string(e.Visibility)
		}
		fc.Append(f)
	}
	return fc
}

// SyncSource replaces the full payload of an existing named source. This is
// the only update path after initialization: engines expose a cheap
// full-payload setData, and per-feature diffing buys nothing at tens to low
// thousands of features. A source the engine does not have (yet, or anymore
// after a style swap) is left for the lifecycle controller to recreate.
func SyncSource(m engine.Map, sourceID string, fc *geojson.FeatureCollection) error {
	if m.Removed() || !m.HasSource(sourceID) {
		return nil
	}
	return m.SetSourceData(sourceID, fc)
}
