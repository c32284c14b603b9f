// Package dashboard is the client core of the satellite dashboard: selection
// state, view locking, panel polling, debounced search, and the persisted
// auth session. It talks to the gateway through the api subpackage and holds
// no rendering concerns.
package dashboard

import (
	"sync"

	"github.com/lankasat/lankasat-live/internal/dashboard/tileurl"
	"github.com/lankasat/lankasat-live/internal/dates"
)

// SelectionState is the currently selected layer and imagery date.
type SelectionState struct {
	LayerID string
	Date    string // YYYY-MM-DD, always within the imagery range
}

// Selection tracks the user's layer and date choice. Mutations notify
// subscribers synchronously so dependent views (tile template, legend)
// recompute before the call returns.
type Selection struct {
	baseURL string

	mu      sync.Mutex
	state   SelectionState
	nextSub int
	subs    map[int]func(SelectionState)
}

// NewSelection starts at the given layer and today's date.
func NewSelection(baseURL, layerID string) *Selection {
	return &Selection{
		baseURL: baseURL,
		state: SelectionState{
			LayerID: layerID,
			Date:    dates.Normalize(dates.Today()),
		},
		subs: make(map[int]func(SelectionState)),
	}
}

// SetLayer switches the active layer. Applied immediately, no debounce.
func (s *Selection) SetLayer(layerID string) {
	s.mu.Lock()
	s.state.LayerID = layerID
	state, subs := s.state, s.snapshotSubs()
	s.mu.Unlock()
	notify(subs, state)
}

// SetDate changes the imagery date. The input may be a time.Time or a
// YYYY-MM-DD string; out-of-range values are clamped, never rejected.
func (s *Selection) SetDate(date any) {
	s.mu.Lock()
	s.state.Date = dates.Normalize(date)
	state, subs := s.state, s.snapshotSubs()
	s.mu.Unlock()
	notify(subs, state)
}

// Current returns the selection snapshot.
func (s *Selection) Current() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TileTemplate returns the tile URL template for the current selection.
func (s *Selection) TileTemplate() string {
	state := s.Current()
	return tileurl.Build(s.baseURL, state.LayerID, state.Date)
}

// Subscribe registers a callback invoked synchronously on every mutation.
// The returned function unsubscribes.
func (s *Selection) Subscribe(fn func(SelectionState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Selection) snapshotSubs() []func(SelectionState) {
	out := make([]func(SelectionState), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(SelectionState), state SelectionState) {
	for _, fn := range subs {
		fn(state)
	}
}
