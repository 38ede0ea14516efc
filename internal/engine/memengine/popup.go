package memengine

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/loveofminnesota/pinmap/internal/engine"
)

// Popup is an in-memory engine.Popup.
type Popup struct {
	eng *Engine

	mu      sync.Mutex
	at      orb.Point
	html    string
	open    bool
	closed  bool
	onClose []func()
}

// NewPopup creates a detached popup; AddTo attaches it to the map.
func (e *Engine) NewPopup() engine.Popup {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLive()
	return &Popup{eng: e}
}

func (p *Popup) SetLngLat(at orb.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.at = at
}

func (p *Popup) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *Popup) AddTo(engine.Map) {
	p.mu.Lock()
	if p.open || p.closed {
		p.mu.Unlock()
		return
	}
	p.open = true
	p.mu.Unlock()

	p.eng.mu.Lock()
	p.eng.ensureLive()
	p.eng.popups = append(p.eng.popups, p)
	p.eng.mu.Unlock()
}

// Remove detaches the popup and fires close callbacks exactly once.
func (p *Popup) Remove() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	wasOpen := p.open
	p.open = false
	p.closed = true
	callbacks := append([]func(){}, p.onClose...)
	p.mu.Unlock()

	if wasOpen {
		p.eng.mu.Lock()
		if !p.eng.removed {
			for i, other := range p.eng.popups {
				if other == p {
					p.eng.popups = append(p.eng.popups[:i], p.eng.popups[i+1:]...)
					break
				}
			}
		}
		p.eng.mu.Unlock()
	}

	for _, fn := range callbacks {
		fn()
	}
}

func (p *Popup) OnClose(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = append(p.onClose, fn)
}

// HTML returns the popup content, for assertions.
func (p *Popup) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html
}

// LngLat returns the popup anchor, for assertions.
func (p *Popup) LngLat() orb.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.at
}
