// Package pin contains the application records rendered on the map.
package pin

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Visibility controls who can see an entity.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityOnlyMe Visibility = "only_me"
)

// Entity is a record with a map position and display metadata: a user pin or
// an atlas item. Atlas items backed by an area (city/township boundaries)
// carry a Boundary polygon instead of, or in addition to, a point.
type Entity struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId,omitempty"`
	Lat         float64     `json:"lat,omitempty"`
	Lng         float64     `json:"lng,omitempty"`
	Boundary    orb.Polygon `json:"-"`
	Description string      `json:"description,omitempty"`
	MediaURL    string      `json:"mediaUrl,omitempty"`
	Emoji       string      `json:"emoji,omitempty"`
	Category    string      `json:"category,omitempty"`
	Visibility  Visibility  `json:"visibility,omitempty"`
	Archived    bool        `json:"archived,omitempty"`
	Views       int         `json:"views,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty"`
}

// Position returns the renderable point for the entity. Point entities use
// their lat/lng directly; area-backed entities fall back to the polygon
// centroid. ok is false when neither yields a usable position.
func (e Entity) Position() (orb.Point, bool) {
	if validLatLng(e.Lat, e.Lng) {
		return orb.Point{e.Lng, e.Lat}, true
	}
	if len(e.Boundary) > 0 {
		c, area := planar.CentroidArea(e.Boundary)
		if area > 0 && validLatLng(c.Lat(), c.Lon()) {
			return c, true
		}
	}
	return orb.Point{}, false
}

// Owned reports whether viewer owns the entity.
func (e Entity) Owned(viewer string) bool {
	return viewer != "" && viewer == e.OwnerID
}

// VisibleTo reports whether viewer may see the entity. Archived rows are
// never visible; only_me rows are visible to their owner only.
func (e Entity) VisibleTo(viewer string) bool {
	if e.Archived {
		return false
	}
	if e.Visibility == VisibilityOnlyMe {
		return e.Owned(viewer)
	}
	return true
}

// validLatLng rejects NaN/Inf, out-of-range coordinates, and the zero value
// (0,0), which in practice means the record never had a position set.
func validLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
