// Package pace produces the randomised waits that make scripted browsing
// look like a person reading a feed.
//
// A Pacer owns its random source and its sleep function, so tests can run
// a full scrape instantly and deterministically with NewFake.
package pace

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer draws jittered durations and sleeps for them.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New returns a Pacer seeded from the runtime source that sleeps for real.
func New() *Pacer {
	return &Pacer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// Between returns a uniformly distributed duration in [lo, hi].
func (p *Pacer) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	n := p.rng.Int64N(int64(hi-lo) + 1)
	p.mu.Unlock()
	return lo + time.Duration(n)
}

// IntBetween returns a uniformly distributed int in [lo, hi].
func (p *Pacer) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	n := p.rng.IntN(hi - lo + 1)
	p.mu.Unlock()
	return lo + n
}

// Sleep waits a random duration in [lo, hi]. It returns ctx.Err() if the
// context ends first.
func (p *Pacer) Sleep(ctx context.Context, lo, hi time.Duration) error {
	return p.Wait(ctx, p.Between(lo, hi))
}

// Wait sleeps exactly d through the pacer's sleep function.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Now returns the pacer's current time.
func (p *Pacer) Now() time.Time {
	return p.now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
