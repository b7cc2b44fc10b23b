package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
)

// LoadHook runs after a navigation completes. url is the requested URL.
type LoadHook func(ctx context.Context, page *rod.Page, url string)

// Navigator implements the coordinator's tab driver on top of a Manager.
// Load hooks run in the background, at most one per tab at a time.
type Navigator struct {
	mgr    *Manager
	onLoad LoadHook
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewNavigator returns a Navigator. onLoad may be nil.
func NewNavigator(mgr *Manager, onLoad LoadHook, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Navigator{
		mgr:     mgr,
		onLoad:  onLoad,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}
}

// EnsureTab returns handle when that tab still exists, otherwise a fresh tab.
func (n *Navigator) EnsureTab(ctx context.Context, handle string) (string, error) {
	page, err := n.mgr.Tab(handle)
	if err != nil {
		return "", err
	}
	if page != nil {
		return handle, nil
	}
	page, err = n.mgr.NewTab(ctx)
	if err != nil {
		return "", err
	}
	h := Handle(page)
	n.logger.Info("browser: opened autorun tab", "handle", h)
	return h, nil
}

// Navigate points tab handle at url and starts the load hook.
func (n *Navigator) Navigate(ctx context.Context, handle, url string) error {
	page, err := n.mgr.Tab(handle)
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("browser: tab %s is gone", handle)
	}
	if err := n.mgr.navigate(ctx, page, url); err != nil {
		return err
	}
	n.startHook(handle, page, url)
	return nil
}

func (n *Navigator) startHook(handle string, page *rod.Page, url string) {
	if n.onLoad == nil {
		return
	}
	n.mu.Lock()
	if n.running[handle] || n.ctx.Err() != nil {
		n.mu.Unlock()
		n.logger.Debug("browser: load hook still running", "handle", handle)
		return
	}
	n.running[handle] = true
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		defer func() {
			n.mu.Lock()
			delete(n.running, handle)
			n.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("browser: load hook panic", "handle", handle, "panic", r)
			}
		}()
		n.onLoad(n.ctx, page, url)
	}()
}

// Close cancels running hooks and waits for them.
func (n *Navigator) Close() error {
	n.cancel()
	n.wg.Wait()
	return nil
}
