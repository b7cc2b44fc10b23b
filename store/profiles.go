package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hazyhaar/leadscout/classify"
	"github.com/hazyhaar/leadscout/dbopen"
	"github.com/hazyhaar/leadscout/lead"
)

type profileRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Include string `db:"include"`
	Exclude string `db:"exclude"`
}

func (r profileRow) profile() (lead.Profile, error) {
	p := lead.Profile{ID: r.ID, Name: r.Name, Include: []string{}, Exclude: []string{}}
	if err := json.Unmarshal([]byte(r.Include), &p.Include); err != nil {
		return lead.Profile{}, fmt.Errorf("store: profile %s include: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Exclude), &p.Exclude); err != nil {
		return lead.Profile{}, fmt.Errorf("store: profile %s exclude: %w", r.ID, err)
	}
	p.Include, p.Exclude = nonNil(p.Include), nonNil(p.Exclude)
	return p, nil
}

// ensureProfiles seeds the built-in profiles when the table is empty. A
// store whose profiles were all wiped is healed the same way.
func (s *Store) ensureProfiles(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM profiles`); err != nil {
		return fmt.Errorf("store: count profiles: %w", err)
	}
	if n > 0 {
		return nil
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, p := range classify.DefaultProfiles() {
			if err := putProfile(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListProfiles returns every profile sorted by name.
func (s *Store) ListProfiles(ctx context.Context) ([]lead.Profile, error) {
	if err := s.ensureProfiles(ctx); err != nil {
		return nil, err
	}
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, include, exclude FROM profiles ORDER BY name COLLATE NOCASE, id`); err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	out := make([]lead.Profile, len(rows))
	for i, r := range rows {
		p, err := r.profile()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// GetProfile returns the profile with id, or nil when unknown.
func (s *Store) GetProfile(ctx context.Context, id string) (*lead.Profile, error) {
	if err := s.ensureProfiles(ctx); err != nil {
		return nil, err
	}
	var r profileRow
	err := s.db.GetContext(ctx, &r, `SELECT id, name, include, exclude FROM profiles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile %s: %w", id, err)
	}
	p, err := r.profile()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile inserts or replaces p.
func (s *Store) PutProfile(ctx context.Context, p lead.Profile) error {
	return putProfile(ctx, s.db, p)
}

func putProfile(ctx context.Context, ex sqlx.ExecerContext, p lead.Profile) error {
	inc, err := json.Marshal(nonNil(p.Include))
	if err != nil {
		return err
	}
	exc, err := json.Marshal(nonNil(p.Exclude))
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO profiles (id, name, include, exclude) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, include = excluded.include, exclude = excluded.exclude
	`, p.ID, p.Name, string(inc), string(exc))
	if err != nil {
		return fmt.Errorf("store: put profile %s: %w", p.ID, err)
	}
	return nil
}

// RemoveProfile deletes a profile and reports whether it existed. The
// default profile yields ErrProtected.
func (s *Store) RemoveProfile(ctx context.Context, id string) (bool, error) {
	if id == lead.DefaultProfileID {
		return false, ErrProtected
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: remove profile %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
