// Package notify tells the user about coordinator events: new leads,
// groups switched on or off, autorun started or paused.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/leadscout/lead"
)

// Kind classifies an Event.
type Kind string

const (
	KindLeadFound      Kind = "lead_found"
	KindGroupEnabled   Kind = "group_enabled"
	KindGroupDisabled  Kind = "group_disabled"
	KindAutorunStarted Kind = "autorun_started"
	KindAutorunPaused  Kind = "autorun_paused"
)

// Event is the data sent to every destination.
type Event struct {
	Kind  Kind        `json:"kind"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
	URL   string      `json:"url,omitempty"`
	Lead  *lead.Lead  `json:"lead,omitempty"`
	Group *lead.Group `json:"group,omitempty"`
}

// Notifier delivers events to one destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, ev *Event) error
}

// Manager fans events out to every registered notifier.
type Manager struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewManager returns a Manager over notifiers.
func NewManager(logger *slog.Logger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{notifiers: notifiers, logger: logger}
}

// HasNotifiers reports whether at least one destination is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends ev to every notifier and joins their errors.
func (m *Manager) Broadcast(ctx context.Context, ev *Event) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Notify is Broadcast for callers that must not fail on delivery: errors
// are logged and dropped.
func (m *Manager) Notify(ctx context.Context, ev *Event) {
	if err := m.Broadcast(ctx, ev); err != nil {
		m.logger.Warn("notify: delivery failed", "kind", ev.Kind, "error", err)
	}
}

// Log writes events to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Name() string { return "log" }

func (l Log) Send(_ context.Context, ev *Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notify: "+ev.Title, "kind", ev.Kind, "body", ev.Body, "url", ev.URL)
	return nil
}
