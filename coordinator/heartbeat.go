package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultHeartbeatSpec is the schedule driving AutorunTick.
const DefaultHeartbeatSpec = "@every 1m"

// Heartbeat calls AutorunTick on a cron schedule. A beat that is still
// running when the next one fires is skipped.
type Heartbeat struct {
	c      *Coordinator
	auth   Authenticator
	spec   string
	logger *slog.Logger

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
}

// NewHeartbeat returns a stopped Heartbeat. An empty spec selects
// DefaultHeartbeatSpec. When auth is not nil, beats are skipped while no
// valid session exists.
func NewHeartbeat(c *Coordinator, auth Authenticator, spec string) *Heartbeat {
	if spec == "" {
		spec = DefaultHeartbeatSpec
	}
	return &Heartbeat{c: c, auth: auth, spec: spec, logger: c.cfg.Logger}
}

// Beat runs one heartbeat synchronously.
func (h *Heartbeat) Beat(ctx context.Context) (TickResult, error) {
	if h.auth != nil {
		sess, err := h.auth.EnsureValid(ctx)
		if err != nil {
			return TickResult{}, fmt.Errorf("coordinator: heartbeat session: %w", err)
		}
		if sess == nil {
			return TickResult{}, nil
		}
	}
	return h.c.AutorunTick(ctx)
}

// Start schedules beats until ctx is done or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cron != nil {
		return errors.New("coordinator: heartbeat already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{h.logger}
	c := rcron.New(
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(logger), rcron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(h.spec, func() {
		res, err := h.Beat(runCtx)
		if err != nil {
			h.logger.Warn("coordinator: heartbeat failed", "error", err)
			return
		}
		if res.Ran {
			h.logger.Debug("coordinator: heartbeat navigated", "group", res.Group.Slug)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("coordinator: heartbeat schedule %q: %w", h.spec, err)
	}
	c.Start()
	h.cron, h.cancel = c, cancel
	h.logger.Info("coordinator: heartbeat started", "spec", h.spec)

	go func() {
		<-runCtx.Done()
		h.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits up to 5s for a running beat.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	c, cancel := h.cron, h.cancel
	h.cron, h.cancel = nil, nil
	h.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
		h.logger.Warn("coordinator: heartbeat stop timeout")
	}
	h.logger.Info("coordinator: heartbeat stopped")
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug("cron: "+msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}
