package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FetchFunc loads one panel's data. force marks a user-triggered refresh
// that should bypass server-side caches.
type FetchFunc[T any] func(ctx context.Context, force bool) (T, error)

// PanelState is a snapshot of a polled panel. After a failed fetch, Data
// keeps the last good value and Err carries the failure: stale data always
// beats an empty panel.
type PanelState[T any] struct {
	Data        T
	HasData     bool
	Loading     bool // initial load, nothing to render yet
	Refreshing  bool // user-triggered refresh over existing data
	Err         error
	LastUpdated time.Time
}

// Poller drives one panel: an immediate fetch on Start, then one per
// interval until Stop. Results are applied atomically, and a request
// generation counter drops responses that a newer request has superseded,
// so a slow background tick can never clobber a fresher manual refresh.
type Poller[T any] struct {
	fetch    FetchFunc[T]
	interval time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	state   PanelState[T]
	gen     uint64
	nextSub int
	subs    map[int]func(PanelState[T])

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for fetch at the given interval.
func NewPoller[T any](fetch FetchFunc[T], interval time.Duration) *Poller[T] {
	return NewPollerWithClock(fetch, interval, clockwork.NewRealClock())
}

// NewPollerWithClock is NewPoller with an injectable clock for tests.
func NewPollerWithClock[T any](fetch FetchFunc[T], interval time.Duration, clock clockwork.Clock) *Poller[T] {
	return &Poller[T]{
		fetch:    fetch,
		interval: interval,
		clock:    clock,
		subs:     make(map[int]func(PanelState[T])),
	}
}

// Start fetches once immediately, then on every interval tick until the
// context is cancelled or Stop is called. Start is not reentrant.
func (p *Poller[T]) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.runFetch(ctx, false)

		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				p.runFetch(ctx, false)
			}
		}
	}()
}

// Refresh fetches immediately in the caller's goroutine. force propagates
// to the fetch function for cache-bypassing user refreshes.
func (p *Poller[T]) Refresh(ctx context.Context, force bool) {
	p.runFetch(ctx, force)
}

// Stop cancels the interval loop and waits for it to exit.
func (p *Poller[T]) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// State returns the current panel snapshot.
func (p *Poller[T]) State() PanelState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers a callback invoked synchronously on every state
// change. The returned function unsubscribes.
func (p *Poller[T]) Subscribe(fn func(PanelState[T])) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Poller[T]) runFetch(ctx context.Context, force bool) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	switch {
	case !p.state.HasData:
		p.state.Loading = true
	case force:
		p.state.Refreshing = true
	}
	state, subs := p.state, p.snapshotSubs()
	p.mu.Unlock()
	publish(subs, state)

	data, err := p.fetch(ctx, force)

	p.mu.Lock()
	if gen != p.gen {
		// A newer request started while this one was in flight; its result
		// wins regardless of arrival order.
		p.mu.Unlock()
		return
	}
	p.state.Loading = false
	p.state.Refreshing = false
	switch {
	case err != nil && ctx.Err() != nil:
		// Stopped mid-fetch; not a panel error.
	case err != nil:
		p.state.Err = err
	default:
		p.state.Data = data
		p.state.HasData = true
		p.state.Err = nil
		p.state.LastUpdated = p.clock.Now()
	}
	state, subs = p.state, p.snapshotSubs()
	p.mu.Unlock()
	publish(subs, state)
}

func (p *Poller[T]) snapshotSubs() []func(PanelState[T]) {
	out := make([]func(PanelState[T]), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}

func publish[T any](subs []func(PanelState[T]), state PanelState[T]) {
	for _, fn := range subs {
		fn(state)
	}
}

// Intervals observed by the dashboard panels.
const (
	WeatherPollInterval = 10 * time.Minute
	FloodPollInterval   = 5 * time.Minute
	ReliefPollInterval  = 5 * time.Minute
)
