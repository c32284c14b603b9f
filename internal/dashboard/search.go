package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SearchFunc runs one directory search query.
type SearchFunc[T any] func(ctx context.Context, query string) (T, error)

// SearchState is a snapshot of the debounced search box.
type SearchState[T any] struct {
	Query      string
	Results    T
	HasResults bool
	Searching  bool
	Err        error
}

const (
	searchDebounce = 300 * time.Millisecond
	searchMinQuery = 2
)

// Searcher debounces free-text input before issuing a search. Queries
// shorter than two characters clear the results immediately with no network
// call; longer queries fire one request 300ms after the last keystroke.
type Searcher[T any] struct {
	search SearchFunc[T]
	clock  clockwork.Clock
	ctx    context.Context

	mu      sync.Mutex
	state   SearchState[T]
	gen     uint64
	timer   clockwork.Timer
	nextSub int
	subs    map[int]func(SearchState[T])
}

// NewSearcher creates a searcher bound to ctx for its request lifetimes.
func NewSearcher[T any](ctx context.Context, search SearchFunc[T]) *Searcher[T] {
	return NewSearcherWithClock(ctx, search, clockwork.NewRealClock())
}

// NewSearcherWithClock is NewSearcher with an injectable clock for tests.
func NewSearcherWithClock[T any](ctx context.Context, search SearchFunc[T], clock clockwork.Clock) *Searcher[T] {
	return &Searcher[T]{
		search: search,
		clock:  clock,
		ctx:    ctx,
		subs:   make(map[int]func(SearchState[T])),
	}
}

// SetQuery records a keystroke. Each call resets the debounce window and
// invalidates any in-flight search.
func (s *Searcher[T]) SetQuery(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.state.Query = query
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}

	if len([]rune(query)) < searchMinQuery {
		// Too short to search: clear instead of preserving stale results.
		var zero T
		s.state.Results = zero
		s.state.HasResults = false
		s.state.Searching = false
		s.state.Err = nil
		state, subs := s.state, s.snapshotSubs()
		s.mu.Unlock()
		publishSearch(subs, state)
		return
	}

	s.state.Searching = true
	s.timer = s.clock.AfterFunc(searchDebounce, func() {
		s.run(query, gen)
	})
	state, subs := s.state, s.snapshotSubs()
	s.mu.Unlock()
	publishSearch(subs, state)
}

// State returns the current search snapshot.
func (s *Searcher[T]) State() SearchState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a callback invoked on every state change. The
// returned function unsubscribes.
func (s *Searcher[T]) Subscribe(fn func(SearchState[T])) func() {
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

// Stop cancels any pending debounce timer.
func (s *Searcher[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Searcher[T]) run(query string, gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	results, err := s.search(s.ctx, query)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state.Searching = false
	if err != nil {
		s.state.Err = err
	} else {
		s.state.Results = results
		s.state.HasResults = true
		s.state.Err = nil
	}
	state, subs := s.state, s.snapshotSubs()
	s.mu.Unlock()
	publishSearch(subs, state)
}

func (s *Searcher[T]) snapshotSubs() []func(SearchState[T]) {
	out := make([]func(SearchState[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publishSearch[T any](subs []func(SearchState[T]), state SearchState[T]) {
	for _, fn := range subs {
		fn(state)
	}
}
