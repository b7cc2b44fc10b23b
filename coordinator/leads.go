package coordinator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
	"github.com/hazyhaar/leadscout/notify"
	"github.com/hazyhaar/leadscout/permalink"
)

const (
	unknownAuthor      = "?"
	unknownProfileName = "perfil"
)

// RecordOpportunity stores the reported post as a new Lead unless its
// dedupe key was already recorded. The permalink is normalized again so
// raw variants that differ only by tracking parameters share one key.
func (c *Coordinator) RecordOpportunity(ctx context.Context, op message.Opportunity) (deduped bool, err error) {
	origin := c.originOf(op.GroupURL)
	link, _ := permalink.Normalize(op.Post.Permalink, origin)
	text := strings.TrimSpace(op.Post.Text)
	if link == "" && text == "" {
		return false, fmt.Errorf("%w: opportunity without permalink or text", ErrInvalidInput)
	}

	slug := op.Slug
	if slug == "" {
		slug, _ = permalink.GroupSlug(op.GroupURL)
	}
	author := strings.TrimSpace(op.Post.Author)
	if author == "" {
		author = unknownAuthor
	}
	profile := op.ProfileName
	if profile == "" {
		profile = unknownProfileName
	}
	now := c.now()
	ts := op.Post.Timestamp
	if ts == 0 {
		ts = now
	}

	l := lead.Lead{
		DedupeKey:   lead.DedupeKey(link, text),
		ID:          c.cfg.IDs(),
		FirstSeenAt: now,
		GroupSlug:   slug,
		GroupURL:    op.GroupURL,
		ProfileName: profile,
		Post: lead.Post{
			Author:    author,
			AuthorURL: op.Post.AuthorURL,
			Text:      text,
			Permalink: link,
			Timestamp: ts,
		},
		Origin:    lead.DefaultOrigin,
		Status:    lead.StatusNew,
		UpdatedAt: now,
	}

	c.mu.Lock()
	inserted, err := c.store.InsertLead(ctx, l)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !inserted {
		c.cfg.Logger.Debug("coordinator: opportunity deduped", "key", l.DedupeKey)
		return true, nil
	}
	c.cfg.Logger.Info("coordinator: lead recorded", "id", l.ID, "group", slug, "profile", profile)
	c.emit(ctx, notify.LeadFound(l))
	return false, nil
}

func (c *Coordinator) originOf(groupURL string) string {
	if u, err := url.Parse(groupURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return c.cfg.Origin
}

// ListLeads returns every lead, most recently updated first.
func (c *Coordinator) ListLeads(ctx context.Context) ([]lead.Lead, error) {
	return c.store.ListLeads(ctx)
}

// PatchLead applies the CRM fields of p to the lead stored under key.
func (c *Coordinator) PatchLead(ctx context.Context, key string, p lead.LeadPatch) (lead.Lead, error) {
	if p.Status != nil && !p.Status.Valid() {
		return lead.Lead{}, fmt.Errorf("%w: status %q", ErrInvalidInput, *p.Status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.store.GetLead(ctx, key)
	if err != nil {
		return lead.Lead{}, err
	}
	if cur == nil {
		return lead.Lead{}, fmt.Errorf("%w: lead %q", ErrNotFound, key)
	}
	status, note := cur.Status, cur.Note
	if p.Status != nil {
		status = *p.Status
	}
	if p.Note != nil {
		note = *p.Note
	}
	updated, err := c.store.UpdateLeadCRM(ctx, key, status, note, c.now())
	if err != nil {
		return lead.Lead{}, err
	}
	if updated == nil {
		return lead.Lead{}, fmt.Errorf("%w: lead %q", ErrNotFound, key)
	}
	return *updated, nil
}

// RemoveLead deletes one lead and reports whether it existed.
func (c *Coordinator) RemoveLead(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveLead(ctx, key)
}

// ClearLeads deletes every lead.
func (c *Coordinator) ClearLeads(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.store.ClearLeads(ctx)
	if err == nil {
		c.cfg.Logger.Info("coordinator: leads cleared", "count", n)
	}
	return n, err
}
