// Package store persists groups, leads, keyword profiles and the singleton
// documents (settings, autorun state, session) in SQLite.
//
// The store enforces storage-level uniqueness only. Policy (capacity,
// auth, normalisation) belongs to the coordinator, which is its single
// writer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hazyhaar/leadscout/dbopen"
	"github.com/hazyhaar/leadscout/lead"
)

// ErrProtected is returned when removing the default profile.
var ErrProtected = errors.New("store: profile is protected")

// Store is the SQLite record store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source stamping kv documents.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens the database file at path and prepares it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database, creating tables and seeding the default
// profiles when none exist.
func New(ctx context.Context, db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := s.ensureProfiles(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- groups ---

const groupCols = `slug, url, enabled, added_at, updated_at`

// GetGroup returns the group with slug, or nil when unknown.
func (s *Store) GetGroup(ctx context.Context, slug string) (*lead.Group, error) {
	var g lead.Group
	err := s.db.GetContext(ctx, &g, `SELECT `+groupCols+` FROM monitored_groups WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group %s: %w", slug, err)
	}
	return &g, nil
}

// ListGroups returns every group, oldest first.
func (s *Store) ListGroups(ctx context.Context) ([]lead.Group, error) {
	groups := []lead.Group{}
	err := s.db.SelectContext(ctx, &groups, `SELECT `+groupCols+` FROM monitored_groups ORDER BY added_at, slug`)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	return groups, nil
}

// ListEnabledGroups returns enabled groups in the stable order used by the
// autorun cursor: oldest first, then by slug.
func (s *Store) ListEnabledGroups(ctx context.Context) ([]lead.Group, error) {
	groups := []lead.Group{}
	err := s.db.SelectContext(ctx, &groups,
		`SELECT `+groupCols+` FROM monitored_groups WHERE enabled = 1 ORDER BY added_at, slug`)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled groups: %w", err)
	}
	return groups, nil
}

// CountEnabled returns the number of enabled groups.
func (s *Store) CountEnabled(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM monitored_groups WHERE enabled = 1`); err != nil {
		return 0, fmt.Errorf("store: count enabled: %w", err)
	}
	return n, nil
}

// PutGroup inserts or replaces g.
func (s *Store) PutGroup(ctx context.Context, g lead.Group) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO monitored_groups (`+groupCols+`)
		VALUES (:slug, :url, :enabled, :added_at, :updated_at)
		ON CONFLICT(slug) DO UPDATE SET
			url = excluded.url,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, g)
	if err != nil {
		return fmt.Errorf("store: put group %s: %w", g.Slug, err)
	}
	return nil
}

// RemoveGroup deletes the group and reports whether it existed.
func (s *Store) RemoveGroup(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitored_groups WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("store: remove group %s: %w", slug, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- leads ---

type leadRow struct {
	DedupeKey   string `db:"dedupe_key"`
	ID          string `db:"id"`
	FirstSeenAt int64  `db:"first_seen_at"`
	GroupSlug   string `db:"group_slug"`
	GroupURL    string `db:"group_url"`
	ProfileName string `db:"profile_name"`
	Author      string `db:"author"`
	AuthorURL   string `db:"author_url"`
	Text        string `db:"text"`
	Permalink   string `db:"permalink"`
	PostedAt    int64  `db:"posted_at"`
	Origin      string `db:"origin"`
	Status      string `db:"status"`
	Note        string `db:"note"`
	UpdatedAt   int64  `db:"updated_at"`
}

const leadCols = `dedupe_key, id, first_seen_at, group_slug, group_url, profile_name,
	author, author_url, text, permalink, posted_at, origin, status, note, updated_at`

func rowFromLead(l lead.Lead) leadRow {
	return leadRow{
		DedupeKey:   l.DedupeKey,
		ID:          l.ID,
		FirstSeenAt: l.FirstSeenAt,
		GroupSlug:   l.GroupSlug,
		GroupURL:    l.GroupURL,
		ProfileName: l.ProfileName,
		Author:      l.Post.Author,
		AuthorURL:   l.Post.AuthorURL,
		Text:        l.Post.Text,
		Permalink:   l.Post.Permalink,
		PostedAt:    l.Post.Timestamp,
		Origin:      l.Origin,
		Status:      string(l.Status),
		Note:        l.Note,
		UpdatedAt:   l.UpdatedAt,
	}
}

func (r leadRow) lead() lead.Lead {
	return lead.Lead{
		DedupeKey:   r.DedupeKey,
		ID:          r.ID,
		FirstSeenAt: r.FirstSeenAt,
		GroupSlug:   r.GroupSlug,
		GroupURL:    r.GroupURL,
		ProfileName: r.ProfileName,
		Post: lead.Post{
			Author:    r.Author,
			AuthorURL: r.AuthorURL,
			Text:      r.Text,
			Permalink: r.Permalink,
			Timestamp: r.PostedAt,
		},
		Origin:    r.Origin,
		Status:    lead.Status(r.Status),
		Note:      r.Note,
		UpdatedAt: r.UpdatedAt,
	}
}

// InsertLead stores l unless a lead with the same dedupe key exists. It
// reports whether a row was written; existing leads are never updated.
func (s *Store) InsertLead(ctx context.Context, l lead.Lead) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO leads (`+leadCols+`)
		VALUES (:dedupe_key, :id, :first_seen_at, :group_slug, :group_url, :profile_name,
			:author, :author_url, :text, :permalink, :posted_at, :origin, :status, :note, :updated_at)
		ON CONFLICT(dedupe_key) DO NOTHING
	`, rowFromLead(l))
	if err != nil {
		return false, fmt.Errorf("store: insert lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert lead: %w", err)
	}
	return n == 1, nil
}

// GetLead returns the lead with key, or nil when unknown.
func (s *Store) GetLead(ctx context.Context, key string) (*lead.Lead, error) {
	var r leadRow
	err := s.db.GetContext(ctx, &r, `SELECT `+leadCols+` FROM leads WHERE dedupe_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get lead: %w", err)
	}
	l := r.lead()
	return &l, nil
}

// ListLeads returns every lead, most recently updated first.
func (s *Store) ListLeads(ctx context.Context) ([]lead.Lead, error) {
	var rows []leadRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+leadCols+` FROM leads ORDER BY updated_at DESC, first_seen_at DESC`); err != nil {
		return nil, fmt.Errorf("store: list leads: %w", err)
	}
	out := make([]lead.Lead, len(rows))
	for i, r := range rows {
		out[i] = r.lead()
	}
	return out, nil
}

// UpdateLeadCRM overwrites the CRM fields of a lead. It returns nil when
// the lead does not exist.
func (s *Store) UpdateLeadCRM(ctx context.Context, key string, status lead.Status, note string, updatedAt int64) (*lead.Lead, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, note = ?, updated_at = ? WHERE dedupe_key = ?`,
		string(status), note, updatedAt, key)
	if err != nil {
		return nil, fmt.Errorf("store: update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetLead(ctx, key)
}

// RemoveLead deletes one lead and reports whether it existed.
func (s *Store) RemoveLead(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE dedupe_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("store: remove lead: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearLeads deletes every lead and returns how many were removed.
func (s *Store) ClearLeads(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, fmt.Errorf("store: clear leads: %w", err)
	}
	return res.RowsAffected()
}
