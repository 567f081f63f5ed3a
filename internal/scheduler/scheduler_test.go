package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/mountain-conditions/internal/weather"
)

type fakeRefresher struct {
	mu        sync.Mutex
	calls     map[string]int
	deadlines []bool
	fail      map[string]bool
	block     bool
	ended     []error
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeRefresher) FetchAndStore(ctx context.Context, loc weather.Location) error {
	_, hasDeadline := ctx.Deadline()

	f.mu.Lock()
	f.calls[loc.ID]++
	f.deadlines = append(f.deadlines, hasDeadline)
	block := f.block
	fail := f.fail[loc.ID]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		f.mu.Lock()
		f.ended = append(f.ended, ctx.Err())
		f.mu.Unlock()
		return ctx.Err()
	}
	if fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeRefresher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

var locations = []weather.Location{{ID: "stevens-pass"}, {ID: "mt-baker"}}

func TestRunOnce_RefreshesEveryLocation(t *testing.T) {
	ref := newFakeRefresher()
	ref.fail["mt-baker"] = true

	s := New(locations, time.Minute, time.Second, ref, zap.NewNop())
	s.RunOnce(context.Background())

	assert.Equal(t, 1, ref.count("stevens-pass"))
	assert.Equal(t, 1, ref.count("mt-baker"))
	assert.Equal(t, []bool{true, true}, ref.deadlines)
}

func TestRunOnce_TimeoutBoundsRefresh(t *testing.T) {
	ref := newFakeRefresher()
	ref.block = true

	s := New(locations, time.Minute, 20*time.Millisecond, ref, zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh was not bounded by the timeout")
	}
}

func TestStart_RunsImmediately(t *testing.T) {
	ref := newFakeRefresher()
	s := New(locations, time.Hour, time.Second, ref, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ref.count("stevens-pass") == 1 && ref.count("mt-baker") == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStart_NoLocations(t *testing.T) {
	ref := newFakeRefresher()
	s := New(nil, time.Minute, time.Second, ref, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStop_CancelsRefreshesInFlight(t *testing.T) {
	ref := newFakeRefresher()
	ref.block = true

	s := New(locations, time.Hour, time.Hour, ref, zap.NewNop())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		return ref.count("stevens-pass") == 1 && ref.count("mt-baker") == 1
	}, 5*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}

	assert.Eventually(t, func() bool {
		ref.mu.Lock()
		defer ref.mu.Unlock()
		return len(ref.ended) == 2
	}, 5*time.Second, 10*time.Millisecond)

	ref.mu.Lock()
	defer ref.mu.Unlock()
	for _, err := range ref.ended {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
