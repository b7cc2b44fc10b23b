package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/leadscout/lead"
)

const (
	keySettings = "settings"
	keyAutorun  = "autorun"
	keySession  = "session"
)

// getDoc decodes the JSON document stored under key into v and reports
// whether it was found.
func (s *Store) getDoc(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putDoc(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), lead.Millis(s.now()))
	if err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

// Settings returns the settings document, defaulting the active profile.
func (s *Store) Settings(ctx context.Context) (lead.Settings, error) {
	st := lead.Settings{ActiveProfileID: lead.DefaultProfileID}
	if _, err := s.getDoc(ctx, keySettings, &st); err != nil {
		return lead.Settings{}, err
	}
	if st.ActiveProfileID == "" {
		st.ActiveProfileID = lead.DefaultProfileID
	}
	return st, nil
}

// PutSettings replaces the settings document.
func (s *Store) PutSettings(ctx context.Context, st lead.Settings) error {
	return s.putDoc(ctx, keySettings, st)
}

// Autorun returns the autorun state, or lead.DefaultAutorunState when
// nothing was persisted yet.
func (s *Store) Autorun(ctx context.Context) (lead.AutorunState, error) {
	st := lead.DefaultAutorunState()
	if _, err := s.getDoc(ctx, keyAutorun, &st); err != nil {
		return lead.AutorunState{}, err
	}
	return st, nil
}

// PutAutorun replaces the autorun state.
func (s *Store) PutAutorun(ctx context.Context, st lead.AutorunState) error {
	return s.putDoc(ctx, keyAutorun, st)
}

// Session returns the persisted session, or nil.
func (s *Store) Session(ctx context.Context) (*lead.Session, error) {
	var sess lead.Session
	ok, err := s.getDoc(ctx, keySession, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

// PutSession replaces the persisted session.
func (s *Store) PutSession(ctx context.Context, sess lead.Session) error {
	return s.putDoc(ctx, keySession, sess)
}

// ClearSession forgets the persisted session.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, keySession); err != nil {
		return fmt.Errorf("store: clear session: %w", err)
	}
	return nil
}
