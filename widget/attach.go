package widget

import (
	"context"

	"github.com/hazyhaar/leadscout/message"
)

// EventKind is a user or page event reported by an interactive surface.
type EventKind int

const (
	EventToggle EventKind = iota + 1
	EventClose
	EventNavigate
	EventMutate
)

// Interactive is a Surface that also reports events.
type Interactive interface {
	Surface
	Events() <-chan EventKind
}

// Options configures Attach.
type Options struct {
	Controller Config
	Watch      WatchConfig
}

// Attachment is a running widget on one page.
type Attachment struct {
	Controller *Controller
	watcher    *Watcher
	cancel     context.CancelFunc
	done       chan struct{}
}

// Attach starts a widget on s. Clicks and closes go to the controller;
// navigation and mutation events feed the watcher, which ticks the
// controller. It runs until ctx ends, Detach is called or the event
// channel closes.
func Attach(ctx context.Context, s Interactive, send message.Sender, opts Options) *Attachment {
	ctx, cancel := context.WithCancel(ctx)
	ctrl := NewController(s, send, opts.Controller)
	log := ctrl.cfg.Logger

	w := NewWatcher(opts.Watch, func(ctx context.Context) {
		if err := ctrl.Tick(ctx); err != nil && ctx.Err() == nil {
			log.Warn("widget: tick failed", "error", err)
		}
	})
	a := &Attachment{Controller: ctrl, watcher: w, cancel: cancel, done: make(chan struct{})}
	w.Start(ctx)

	go func() {
		defer close(a.done)
		defer w.Stop()
		events := s.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				var err error
				switch ev {
				case EventToggle:
					err = ctrl.Toggle(ctx)
				case EventClose:
					err = ctrl.Close(ctx)
				case EventNavigate:
					w.Navigated()
				case EventMutate:
					w.Mutated()
				}
				if err != nil && ctx.Err() == nil {
					log.Warn("widget: event failed", "event", ev, "error", err)
				}
			}
		}
	}()
	return a
}

// Detach stops the widget and waits for it to finish.
func (a *Attachment) Detach() {
	a.cancel()
	<-a.done
}

// Done is closed once the widget stopped.
func (a *Attachment) Done() <-chan struct{} { return a.done }
