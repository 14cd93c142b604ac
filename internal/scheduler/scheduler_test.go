package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (p *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.deleted, p.err
}

func (p *fakePruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRunOnceUsesRetention(t *testing.T) {
	p := &fakePruner{deleted: 3}
	s := New(p, time.Minute, 24*time.Hour, nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	assert.Equal(t, int64(3), s.RunOnce(context.Background()))
	assert.Equal(t, []time.Time{fixed.Add(-24 * time.Hour)}, p.cutoffs)
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	p := &fakePruner{deleted: 5, err: errors.New("disk full")}
	s := New(p, time.Minute, time.Hour, nil)
	assert.Equal(t, int64(0), s.RunOnce(context.Background()))
}

func TestDefaults(t *testing.T) {
	s := New(&fakePruner{}, 0, 0, nil)
	assert.Equal(t, time.Hour, s.interval)
	assert.Equal(t, 7*24*time.Hour, s.retention)
}

func TestStartStop(t *testing.T) {
	p := &fakePruner{}
	s := New(p, 10*time.Millisecond, time.Hour, nil)
	s.Start()
	assert.Eventually(t, func() bool { return p.calls() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	n := p.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, p.calls())
}

func TestStopWithoutStart(t *testing.T) {
	s := New(&fakePruner{}, time.Minute, time.Hour, nil)
	s.Stop()
}
