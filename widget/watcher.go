package widget

import (
	"context"
	"sync"
	"time"
)

// WatchConfig tunes a Watcher.
type WatchConfig struct {
	// Debounce is the quiet period after DOM mutations. Default: 250ms.
	Debounce time.Duration
	// Poll is the fallback polling period. Default: 800ms.
	Poll time.Duration
}

func (wc *WatchConfig) defaults() {
	if wc.Debounce <= 0 {
		wc.Debounce = 250 * time.Millisecond
	}
	if wc.Poll <= 0 {
		wc.Poll = 800 * time.Millisecond
	}
}

// Watcher turns navigation signals into calls of a single callback:
// history changes fire at once, mutation bursts fire once after the
// debounce window, and polling fires regardless. Calls never overlap.
type Watcher struct {
	cfg WatchConfig
	fn  func(ctx context.Context)

	nav chan struct{}
	mut chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher returns a stopped Watcher invoking fn.
func NewWatcher(cfg WatchConfig, fn func(ctx context.Context)) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg: cfg,
		fn:  fn,
		nav: make(chan struct{}, 1),
		mut: make(chan struct{}, 1),
	}
}

// Start runs fn once and then on every signal until Stop or ctx ends.
// Starting a running Watcher does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
}

// Stop ends the loop and waits for a running callback to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Navigated signals a history change.
func (w *Watcher) Navigated() { signal(w.nav) }

// Mutated signals a DOM mutation.
func (w *Watcher) Mutated() { signal(w.mut) }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.NewTicker(w.cfg.Poll)
	defer poll.Stop()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerCh = nil, nil
		}
	}
	defer stopTimer()

	w.fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.nav:
			stopTimer()
			w.fn(ctx)
		case <-w.mut:
			stopTimer()
			timer = time.NewTimer(w.cfg.Debounce)
			timerCh = timer.C
		case <-timerCh:
			timer, timerCh = nil, nil
			w.fn(ctx)
		case <-poll.C:
			w.fn(ctx)
		}
	}
}
