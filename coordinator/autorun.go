package coordinator

import (
	"context"
	"fmt"

	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/notify"
)

// AutorunStatus returns the autorun state.
func (c *Coordinator) AutorunStatus(ctx context.Context) (lead.AutorunState, error) {
	return c.store.Autorun(ctx)
}

// AutorunStart marks autorun running with the given interval. Zero selects
// the configured default; anything shorter than a minute is raised to one.
func (c *Coordinator) AutorunStart(ctx context.Context, intervalMs int64) (lead.AutorunState, error) {
	if intervalMs <= 0 {
		intervalMs = c.cfg.DefaultAutorunInterval.Milliseconds()
	}
	intervalMs = max(intervalMs, lead.MinAutorunInterval)

	c.mu.Lock()
	st, err := c.store.Autorun(ctx)
	if err == nil {
		st.Running = true
		st.IntervalMs = intervalMs
		err = c.store.PutAutorun(ctx, st)
	}
	c.mu.Unlock()
	if err != nil {
		return lead.AutorunState{}, err
	}
	c.cfg.Logger.Info("coordinator: autorun started", "interval_ms", intervalMs)
	c.emit(ctx, notify.AutorunStarted())
	return st, nil
}

// AutorunStop pauses autorun. Cursor and tab handle are kept.
func (c *Coordinator) AutorunStop(ctx context.Context) (lead.AutorunState, error) {
	c.mu.Lock()
	st, err := c.store.Autorun(ctx)
	if err == nil {
		st.Running = false
		err = c.store.PutAutorun(ctx, st)
	}
	c.mu.Unlock()
	if err != nil {
		return lead.AutorunState{}, err
	}
	c.cfg.Logger.Info("coordinator: autorun paused")
	c.emit(ctx, notify.AutorunPaused())
	return st, nil
}

// AutorunReset rewinds the rotation to the first group. Running, the
// interval and the tab are kept.
func (c *Coordinator) AutorunReset(ctx context.Context) (lead.AutorunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.store.Autorun(ctx)
	if err != nil {
		return lead.AutorunState{}, err
	}
	st.CursorIndex, st.LastRunAt = 0, 0
	if err := c.store.PutAutorun(ctx, st); err != nil {
		return lead.AutorunState{}, err
	}
	return st, nil
}

// TickResult reports what one AutorunTick did.
type TickResult struct {
	Ran   bool
	Group lead.Group
	State lead.AutorunState
}

// AutorunTick runs one heartbeat step: when autorun is running and the
// interval has elapsed since the last run, the enabled group at
// cursor mod len(enabled) is opened in the autorun tab, the cursor advances
// and LastRunAt is stamped. Navigation happens outside the lock; the state
// is re-read before it is patched so a concurrent stop is not overwritten.
func (c *Coordinator) AutorunTick(ctx context.Context) (TickResult, error) {
	c.mu.Lock()
	st, err := c.store.Autorun(ctx)
	if err != nil {
		c.mu.Unlock()
		return TickResult{}, err
	}
	now := c.now()
	if !st.Running || now-st.LastRunAt < st.IntervalMs {
		c.mu.Unlock()
		return TickResult{State: st}, nil
	}
	enabled, err := c.store.ListEnabledGroups(ctx)
	c.mu.Unlock()
	if err != nil {
		return TickResult{}, err
	}
	if len(enabled) == 0 {
		return TickResult{State: st}, nil
	}
	if c.nav == nil {
		return TickResult{State: st}, ErrNoNavigator
	}

	cursor := st.CursorIndex
	if cursor < 0 {
		cursor = 0
	}
	g := enabled[cursor%len(enabled)]

	handle, err := c.nav.EnsureTab(ctx, st.TabHandle)
	if err != nil {
		return TickResult{State: st}, fmt.Errorf("coordinator: autorun tab: %w", err)
	}
	if err := c.nav.Navigate(ctx, handle, g.URL); err != nil {
		return TickResult{State: st}, fmt.Errorf("coordinator: autorun navigate %s: %w", g.Slug, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, err := c.store.Autorun(ctx)
	if err != nil {
		return TickResult{}, err
	}
	cur.TabHandle = handle
	cur.CursorIndex = cursor + 1
	cur.LastRunAt = now
	if err := c.store.PutAutorun(ctx, cur); err != nil {
		return TickResult{}, err
	}
	c.cfg.Logger.Info("coordinator: autorun tick", "group", g.Slug, "cursor", cur.CursorIndex)
	return TickResult{Ran: true, Group: g, State: cur}, nil
}
