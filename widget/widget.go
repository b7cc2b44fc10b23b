// Package widget drives the per-group toggle card shown on group pages:
// it decides when the card may appear, reflects the coordinator's answer
// after each click and stays hidden once the user closed it.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/leadscout/message"
	"github.com/hazyhaar/leadscout/permalink"
)

// Labels and messages rendered on the card.
const (
	Title         = "Notificações do Grupo"
	LabelEnable   = "Ativar"
	LabelDisable  = "Desativar"
	MsgEnabled    = "Ativado."
	MsgDisabled   = "Desativado."
	MsgSaveFailed = "Erro ao salvar."
)

// View is what the card shows.
type View struct {
	Slug    string
	Enabled bool
	Busy    bool
	Message string
}

// Label is the action button text.
func (v View) Label() string {
	if v.Enabled {
		return LabelDisable
	}
	return LabelEnable
}

// Surface is the page hosting the card.
type Surface interface {
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	// Present reports whether the card element is still in the page.
	Present(ctx context.Context) (bool, error)
	// Render creates the card if needed and shows v.
	Render(ctx context.Context, v View) error
	// Remove deletes the card. Removing an absent card is not an error.
	Remove(ctx context.Context) error
}

// Config tunes a Controller.
type Config struct {
	// Origin builds the group URL sent with GROUP_ENABLE.
	// Default: permalink.DefaultOrigin.
	Origin string
	// SendTimeout bounds each request. Default: 8s.
	SendTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Origin == "" {
		c.Origin = permalink.DefaultOrigin
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 8 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Status is a snapshot of the controller state.
type Status struct {
	Slug    string // group of the current page, "" off group pages
	Mounted bool
	Enabled bool
	Hidden  bool // closed by the user for Slug
}

// Controller owns the card of one page. Tick, Toggle and Close are
// serialized.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	send    message.Sender
	cfg     Config

	slug    string
	mounted bool
	hidden  bool
	view    View
}

// NewController returns an unmounted Controller.
func NewController(s Surface, send message.Sender, cfg Config) *Controller {
	cfg.defaults()
	return &Controller{surface: s, send: send, cfg: cfg}
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Slug: c.slug, Mounted: c.mounted, Enabled: c.view.Enabled, Hidden: c.hidden}
}

// Tick reconciles the card with the current URL: unmount off group pages,
// remount on a new group or after the host page dropped the card.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.surface.URL(ctx)
	if err != nil {
		return fmt.Errorf("widget: url: %w", err)
	}
	slug, ok := permalink.GroupSlug(u)
	if !ok {
		c.slug, c.hidden = "", false
		return c.unmount(ctx)
	}

	if slug != c.slug {
		c.slug, c.hidden = slug, false
		return c.mount(ctx)
	}
	if c.hidden {
		return nil
	}
	present, err := c.surface.Present(ctx)
	if err != nil {
		return fmt.Errorf("widget: present: %w", err)
	}
	if !c.mounted || !present {
		return c.mount(ctx)
	}
	return nil
}

// mount asks whether the card may be shown and renders it.
func (c *Controller) mount(ctx context.Context) error {
	if err := c.unmount(ctx); err != nil {
		return err
	}
	resp := c.call(ctx, message.GroupCanInject{Slug: c.slug})
	if !resp.OK {
		c.cfg.Logger.Debug("widget: not mounting", "slug", c.slug, "code", resp.Code)
		return nil
	}
	if !resp.Allowed && resp.Existing == nil {
		c.cfg.Logger.Debug("widget: not mounting, limit reached", "slug", c.slug, "limit", resp.Limit)
		return nil
	}
	c.view = View{Slug: c.slug, Enabled: resp.Existing != nil && resp.Existing.Enabled}
	if err := c.surface.Render(ctx, c.view); err != nil {
		return fmt.Errorf("widget: render: %w", err)
	}
	c.mounted = true
	return nil
}

func (c *Controller) unmount(ctx context.Context) error {
	c.view = View{}
	if !c.mounted {
		return nil
	}
	c.mounted = false
	if err := c.surface.Remove(ctx); err != nil {
		return fmt.Errorf("widget: remove: %w", err)
	}
	return nil
}

// Toggle handles a click on the action button. Permission is checked
// again before the command and the card shows the coordinator's answer.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted || c.slug == "" {
		return nil
	}

	c.view.Busy, c.view.Message = true, ""
	if err := c.surface.Render(ctx, c.view); err != nil {
		return fmt.Errorf("widget: render: %w", err)
	}

	fresh := c.call(ctx, message.GroupCanInject{Slug: c.slug})
	if !fresh.OK {
		c.cfg.Logger.Info("widget: revalidation failed", "slug", c.slug, "code", fresh.Code)
		return c.unmount(ctx)
	}
	enabledNow := fresh.Existing != nil && fresh.Existing.Enabled
	if !enabledNow && !fresh.Allowed && fresh.Existing == nil {
		c.cfg.Logger.Info("widget: limit reached", "slug", c.slug, "limit", fresh.Limit)
		return c.unmount(ctx)
	}

	var resp message.Response
	if enabledNow {
		resp = c.call(ctx, message.GroupDisable{Slug: c.slug})
	} else {
		resp = c.call(ctx, message.GroupEnable{Slug: c.slug, URL: permalink.GroupURL(c.cfg.Origin, c.slug)})
	}
	if !resp.OK {
		if resp.Code == message.CodeLimitReached || resp.Code == message.CodeNotAuthenticated {
			c.cfg.Logger.Info("widget: command refused", "slug", c.slug, "code", resp.Code)
			return c.unmount(ctx)
		}
		c.view.Busy, c.view.Message = false, MsgSaveFailed
		return c.render(ctx)
	}

	c.view.Enabled = resp.Group != nil && resp.Group.Enabled
	c.view.Busy = false
	c.view.Message = MsgDisabled
	if c.view.Enabled {
		c.view.Message = MsgEnabled
	}
	return c.render(ctx)
}

// Close hides the card until the user moves to another group.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slug != "" {
		c.hidden = true
	}
	return c.unmount(ctx)
}

// View returns what the card currently shows.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) render(ctx context.Context) error {
	if err := c.surface.Render(ctx, c.view); err != nil {
		return fmt.Errorf("widget: render: %w", err)
	}
	return nil
}

func (c *Controller) call(ctx context.Context, req message.Request) message.Response {
	return message.Call(ctx, c.send, req, c.cfg.SendTimeout)
}
