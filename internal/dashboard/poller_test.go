package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// countingFetch is a scriptable fetch function for poller tests.
type countingFetch struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	lastTry bool // force flag of the most recent call
}

func (f *countingFetch) fetch(_ context.Context, force bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTry = force
	if f.fail {
		return 0, errors.New("upstream unavailable")
	}
	return f.calls, nil
}

func (f *countingFetch) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *countingFetch) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *countingFetch) lastForce() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTry
}

func TestPoller_InitialFetchAndTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	f := &countingFetch{}
	p := NewPollerWithClock(f.fetch, 10*time.Minute, clock)

	p.Start(context.Background())
	defer p.Stop()

	// The interval timer registers only after the immediate first fetch.
	clock.BlockUntil(1)
	state := p.State()
	require.True(t, state.HasData)
	assert.Equal(t, 1, state.Data)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return p.State().Data == 2 },
		time.Second, time.Millisecond)
}

func TestPoller_FailedTickPreservesData(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	f := &countingFetch{}
	p := NewPollerWithClock(f.fetch, 10*time.Minute, clock)

	p.Start(context.Background())
	defer p.Stop()
	clock.BlockUntil(1)

	f.setFail(true)
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return p.State().Err != nil },
		time.Second, time.Millisecond)

	state := p.State()
	assert.True(t, state.HasData, "stale data survives a failed refresh")
	assert.Equal(t, 1, state.Data)

	// Recovery replaces data and clears the error together.
	f.setFail(false)
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool {
		s := p.State()
		return s.Err == nil && s.Data > 1
	}, time.Second, time.Millisecond)
}

func TestPoller_RefreshFlags(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &countingFetch{}
	p := NewPollerWithClock(f.fetch, time.Hour, clockwork.NewFakeClock())

	var observed []PanelState[int]
	p.Subscribe(func(s PanelState[int]) { observed = append(observed, s) })

	// First fetch with no data shows the loading indicator.
	p.Refresh(context.Background(), false)
	require.GreaterOrEqual(t, len(observed), 2)
	assert.True(t, observed[0].Loading)
	assert.False(t, observed[0].Refreshing)

	// A forced refresh over existing data shows the refreshing indicator
	// instead, and reaches the fetch function.
	observed = nil
	p.Refresh(context.Background(), true)
	require.GreaterOrEqual(t, len(observed), 2)
	assert.True(t, observed[0].Refreshing)
	assert.False(t, observed[0].Loading)
	assert.True(t, f.lastForce())
}

func TestPoller_StaleResponseDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	fetch := func(_ context.Context, force bool) (string, error) {
		if !force {
			entered <- struct{}{}
			<-release
			return "stale", nil
		}
		return "fresh", nil
	}
	p := NewPollerWithClock(fetch, time.Hour, clockwork.NewFakeClock())

	slowDone := make(chan struct{})
	go func() {
		p.Refresh(context.Background(), false)
		close(slowDone)
	}()
	<-entered

	// A newer refresh completes while the old one is still in flight.
	p.Refresh(context.Background(), true)
	close(release)
	<-slowDone

	assert.Equal(t, "fresh", p.State().Data,
		"a superseded response must not overwrite a newer one")
}

func TestPoller_StopCancelsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	f := &countingFetch{}
	p := NewPollerWithClock(f.fetch, time.Minute, clock)

	p.Start(context.Background())
	clock.BlockUntil(1)
	p.Stop()

	calls := f.count()
	clock.Advance(time.Hour)
	assert.Equal(t, calls, f.count(), "no fetches after Stop")
}
