package memengine

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/loveofminnesota/pinmap/internal/engine"
)

// Marker is an in-memory engine.Marker. NewMarker attaches it immediately,
// matching renderer marker semantics.
type Marker struct {
	eng *Engine

	mu      sync.Mutex
	at      orb.Point
	removed bool
}

func (e *Engine) NewMarker(at orb.Point) engine.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	m := &Marker{eng: e, at: at}
	e.markers = append(e.markers, m)
	return m
}

func (m *Marker) SetLngLat(at orb.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at = at
}

func (m *Marker) Remove() {
	m.mu.Lock()
	if m.removed {
		m.mu.Unlock()
		return
	}
	m.removed = true
	m.mu.Unlock()

	m.eng.mu.Lock()
	if !m.eng.removed {
		for i, other := range m.eng.markers {
			if other == m {
				m.eng.markers = append(m.eng.markers[:i], m.eng.markers[i+1:]...)
				break
			}
		}
	}
	m.eng.mu.Unlock()
}

// LngLat returns the marker position, for assertions.
func (m *Marker) LngLat() orb.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at
}
