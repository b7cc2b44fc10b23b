// Package coordinator is the background authority: it owns groups, leads,
// profiles, settings and the autorun loop, and serves the message protocol
// through Dispatcher.
//
// All mutations run under one mutex, so the capacity check of EnableGroup
// and the insert that follows it are atomic, and lead insertion can never
// race with itself.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/leadscout/idgen"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/notify"
	"github.com/hazyhaar/leadscout/permalink"
)

// Store is the record store the coordinator writes through.
type Store interface {
	GetGroup(ctx context.Context, slug string) (*lead.Group, error)
	ListGroups(ctx context.Context) ([]lead.Group, error)
	ListEnabledGroups(ctx context.Context) ([]lead.Group, error)
	CountEnabled(ctx context.Context) (int, error)
	PutGroup(ctx context.Context, g lead.Group) error
	RemoveGroup(ctx context.Context, slug string) (bool, error)

	InsertLead(ctx context.Context, l lead.Lead) (bool, error)
	GetLead(ctx context.Context, key string) (*lead.Lead, error)
	ListLeads(ctx context.Context) ([]lead.Lead, error)
	UpdateLeadCRM(ctx context.Context, key string, status lead.Status, note string, updatedAt int64) (*lead.Lead, error)
	RemoveLead(ctx context.Context, key string) (bool, error)
	ClearLeads(ctx context.Context) (int64, error)

	ListProfiles(ctx context.Context) ([]lead.Profile, error)
	GetProfile(ctx context.Context, id string) (*lead.Profile, error)
	PutProfile(ctx context.Context, p lead.Profile) error
	RemoveProfile(ctx context.Context, id string) (bool, error)

	Settings(ctx context.Context) (lead.Settings, error)
	PutSettings(ctx context.Context, s lead.Settings) error
	Autorun(ctx context.Context) (lead.AutorunState, error)
	PutAutorun(ctx context.Context, s lead.AutorunState) error
}

// Navigator drives the dedicated autorun tab.
type Navigator interface {
	// EnsureTab returns handle if that tab is still open, or opens a new
	// background tab and returns its handle.
	EnsureTab(ctx context.Context, handle string) (string, error)
	// Navigate points the tab at url.
	Navigate(ctx context.Context, handle, url string) error
}

// Config tunes a Coordinator.
type Config struct {
	// MaxActiveGroups bounds the number of enabled groups. Default: 5.
	MaxActiveGroups int
	// Origin resolves relative permalinks and builds group URLs.
	// Default: permalink.DefaultOrigin.
	Origin string
	// DefaultAutorunInterval is used by AutorunStart without an interval.
	// Default: 5m.
	DefaultAutorunInterval time.Duration
	Logger                 *slog.Logger
	Now                    func() time.Time
	IDs                    idgen.Generator
}

func (c *Config) defaults() {
	if c.MaxActiveGroups <= 0 {
		c.MaxActiveGroups = 5
	}
	if c.Origin == "" {
		c.Origin = permalink.DefaultOrigin
	}
	if c.DefaultAutorunInterval <= 0 {
		c.DefaultAutorunInterval = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.IDs == nil {
		c.IDs = idgen.Default
	}
}

// Coordinator serialises every write to the record store.
type Coordinator struct {
	mu     sync.Mutex
	store  Store
	cfg    Config
	nav    Navigator
	notify *notify.Manager
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNavigator attaches the browser driving autorun.
func WithNavigator(n Navigator) Option { return func(c *Coordinator) { c.nav = n } }

// WithNotifier attaches event notifications.
func WithNotifier(m *notify.Manager) Option { return func(c *Coordinator) { c.notify = m } }

// New returns a Coordinator over store.
func New(store Store, cfg Config, opts ...Option) *Coordinator {
	cfg.defaults()
	c := &Coordinator{store: store, cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Limit returns the active group limit.
func (c *Coordinator) Limit() int { return c.cfg.MaxActiveGroups }

func (c *Coordinator) now() int64 { return lead.Millis(c.cfg.Now()) }

func (c *Coordinator) emit(ctx context.Context, ev *notify.Event) {
	if c.notify.HasNotifiers() {
		c.notify.Notify(ctx, ev)
	}
}

// --- groups ---

// InjectDecision answers CanInjectOrToggle.
type InjectDecision struct {
	Allowed     bool
	Existing    *lead.Group
	ActiveCount int
	Limit       int
}

// CanInjectOrToggle reports whether the widget may be shown for slug: always
// for known groups, otherwise only while below the active limit.
func (c *Coordinator) CanInjectOrToggle(ctx context.Context, slug string) (InjectDecision, error) {
	if slug == "" {
		return InjectDecision{}, fmt.Errorf("%w: empty slug", ErrInvalidInput)
	}
	existing, err := c.store.GetGroup(ctx, slug)
	if err != nil {
		return InjectDecision{}, err
	}
	active, err := c.store.CountEnabled(ctx)
	if err != nil {
		return InjectDecision{}, err
	}
	return InjectDecision{
		Allowed:     existing != nil || active < c.cfg.MaxActiveGroups,
		Existing:    existing,
		ActiveCount: active,
		Limit:       c.cfg.MaxActiveGroups,
	}, nil
}

// EnableGroup enables slug, creating the group on first use. A known group
// is updated in place whatever the count; creating a new one fails with
// ErrLimitReached once the limit is reached.
func (c *Coordinator) EnableGroup(ctx context.Context, slug, url string) (lead.Group, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return lead.Group{}, fmt.Errorf("%w: empty slug", ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.store.GetGroup(ctx, slug)
	if err != nil {
		return lead.Group{}, err
	}
	if existing == nil {
		active, err := c.store.CountEnabled(ctx)
		if err != nil {
			return lead.Group{}, err
		}
		if active >= c.cfg.MaxActiveGroups {
			return lead.Group{}, fmt.Errorf("%w (%d)", ErrLimitReached, c.cfg.MaxActiveGroups)
		}
	}

	now := c.now()
	var g lead.Group
	if existing != nil {
		g = *existing
	} else {
		g = lead.Group{Slug: slug, AddedAt: now}
	}
	if url != "" {
		g.URL = url
	}
	if g.URL == "" {
		g.URL = permalink.GroupURL(c.cfg.Origin, slug)
	}
	g.Enabled = true
	g.UpdatedAt = now

	if err := c.store.PutGroup(ctx, g); err != nil {
		return lead.Group{}, err
	}
	c.cfg.Logger.Info("coordinator: group enabled", "slug", slug, "new", existing == nil)
	c.emit(ctx, notify.GroupEnabled(g))
	return g, nil
}

// DisableGroup disables slug. It returns nil for unknown groups.
func (c *Coordinator) DisableGroup(ctx context.Context, slug string) (*lead.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.store.GetGroup(ctx, slug)
	if err != nil || g == nil {
		return nil, err
	}
	g.Enabled = false
	g.UpdatedAt = c.now()
	if err := c.store.PutGroup(ctx, *g); err != nil {
		return nil, err
	}
	c.cfg.Logger.Info("coordinator: group disabled", "slug", slug)
	c.emit(ctx, notify.GroupDisabled(slug))
	return g, nil
}

// RemoveGroup deletes slug and reports whether it existed.
func (c *Coordinator) RemoveGroup(ctx context.Context, slug string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveGroup(ctx, slug)
}

// ListGroups returns every group.
func (c *Coordinator) ListGroups(ctx context.Context) ([]lead.Group, error) {
	return c.store.ListGroups(ctx)
}
