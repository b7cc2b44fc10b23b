package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/leadscout/classify"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/store"
)

// Settings returns the settings document.
func (c *Coordinator) Settings(ctx context.Context) (lead.Settings, error) {
	return c.store.Settings(ctx)
}

// SetActiveProfile selects the profile the scraper classifies with.
func (c *Coordinator) SetActiveProfile(ctx context.Context, id string) (lead.Settings, error) {
	if id == "" {
		return lead.Settings{}, fmt.Errorf("%w: empty profile id", ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.store.GetProfile(ctx, id)
	if err != nil {
		return lead.Settings{}, err
	}
	if p == nil {
		return lead.Settings{}, fmt.Errorf("%w: profile %q", ErrNotFound, id)
	}
	st := lead.Settings{ActiveProfileID: id}
	if err := c.store.PutSettings(ctx, st); err != nil {
		return lead.Settings{}, err
	}
	return st, nil
}

// ListProfiles returns every keyword profile.
func (c *Coordinator) ListProfiles(ctx context.Context) ([]lead.Profile, error) {
	return c.store.ListProfiles(ctx)
}

// GetProfile returns the profile id, or nil if it does not exist.
func (c *Coordinator) GetProfile(ctx context.Context, id string) (*lead.Profile, error) {
	return c.store.GetProfile(ctx, id)
}

// UpsertProfile saves p. The name defaults to the id and keyword lists are
// trimmed and deduplicated case-insensitively, keeping first occurrences.
func (c *Coordinator) UpsertProfile(ctx context.Context, p lead.Profile) (lead.Profile, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return lead.Profile{}, fmt.Errorf("%w: empty profile id", ErrInvalidInput)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = p.ID
	}
	p.Include = classify.Dedupe(p.Include)
	p.Exclude = classify.Dedupe(p.Exclude)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.PutProfile(ctx, p); err != nil {
		return lead.Profile{}, err
	}
	return p, nil
}

// RemoveProfile deletes a profile. The default profile cannot be removed.
// Removing the active profile selects the default one again.
func (c *Coordinator) RemoveProfile(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.store.RemoveProfile(ctx, id)
	if errors.Is(err, store.ErrProtected) {
		return false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil || !removed {
		return removed, err
	}
	st, err := c.store.Settings(ctx)
	if err != nil {
		return true, err
	}
	if st.ActiveProfileID == id {
		if err := c.store.PutSettings(ctx, lead.Settings{ActiveProfileID: lead.DefaultProfileID}); err != nil {
			return true, err
		}
	}
	return true, nil
}
