// Package nav defines the deep-link protocol: two query parameters that
// fully determine which popup, if any, is open. A History implementation
// mirrors the browser location; writes use replace semantics so popup
// open/close never pollutes back-navigation.
package nav

import (
	"net/url"
	"sync"
)

// Query parameter names shared with the web client.
const (
	ParamKind = "sel"
	ParamID   = "pinId"
)

// SelectionKindPin is the selection kind for user pins and atlas items.
const SelectionKindPin = "pin"

// Selection identifies the entity whose popup should be open.
type Selection struct {
	Kind string
	ID   string
}

// Zero reports whether no selection is encoded.
func (s Selection) Zero() bool { return s.Kind == "" || s.ID == "" }

// Apply writes the selection into a copy of v and returns it.
func (s Selection) Apply(v url.Values) url.Values {
	out := clone(v)
	out.Set(ParamKind, s.Kind)
	out.Set(ParamID, s.ID)
	return out
}

// Clear removes the selection parameters from a copy of v and returns it.
func Clear(v url.Values) url.Values {
	out := clone(v)
	out.Del(ParamKind)
	out.Del(ParamID)
	return out
}

// FromValues decodes the selection from query parameters. Both parameters
// must be present for a selection to exist.
func FromValues(v url.Values) (Selection, bool) {
	s := Selection{Kind: v.Get(ParamKind), ID: v.Get(ParamID)}
	if s.Zero() {
		return Selection{}, false
	}
	return s, true
}

func clone(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// History is the location the deep-link protocol persists into. Replace
// swaps the current query parameters without creating a navigation entry.
// Watch registers a callback invoked on every change, including the
// watcher's own writes; callers that must ignore self-triggered changes
// keep their own guard.
type History interface {
	Values() url.Values
	Replace(url.Values)
	Watch(func(url.Values)) (stop func())
}

// MemoryHistory is an in-process History. It backs tests and headless
// sessions; a browser-bridged implementation satisfies the same contract.
type MemoryHistory struct {
	mu       sync.Mutex
	values   url.Values
	watchers map[int]func(url.Values)
	nextID   int
}

// NewMemoryHistory creates a history seeded with initial query parameters.
func NewMemoryHistory(initial url.Values) *MemoryHistory {
	return &MemoryHistory{
		values:   clone(initial),
		watchers: make(map[int]func(url.Values)),
	}
}

// Values returns a copy of the current query parameters.
func (h *MemoryHistory) Values() url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.values)
}

// Replace swaps the current parameters and notifies watchers.
func (h *MemoryHistory) Replace(v url.Values) {
	h.mu.Lock()
	h.values = clone(v)
	watchers := make([]func(url.Values), 0, len(h.watchers))
	for _, fn := range h.watchers {
		watchers = append(watchers, fn)
	}
	snapshot := clone(h.values)
	h.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
}

// Watch registers fn for change notifications until stop is called.
func (h *MemoryHistory) Watch(fn func(url.Values)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}
