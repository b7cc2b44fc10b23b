// Package auth owns the user session: local admin sign-in, remote
// identity provider sign-in and refresh, and session validation for the
// coordinator's auth gate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/leadscout/lead"
)

// AdminUserID marks sessions issued by the local admin sign-in.
const AdminUserID = "admin"

// SessionStore persists the single session document.
type SessionStore interface {
	Session(ctx context.Context) (*lead.Session, error)
	PutSession(ctx context.Context, s lead.Session) error
	ClearSession(ctx context.Context) error
}

// Config configures a Manager.
type Config struct {
	// Secret signs admin session tokens. Required for admin sign-in.
	Secret []byte
	// AdminEmail and AdminPasswordHash (bcrypt) enable the local admin
	// sign-in. Empty disables it.
	AdminEmail        string
	AdminPasswordHash string
	// AdminTTL bounds admin sessions. Zero means they do not expire.
	AdminTTL time.Duration
	// RefreshLeeway refreshes remote sessions this long before expiry.
	// Default: 30s.
	RefreshLeeway time.Duration
	// Provider is the remote identity provider. Nil disables remote
	// sign-in; stored remote sessions are then trusted as they are.
	Provider Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

func (c *Config) defaults() {
	if c.RefreshLeeway <= 0 {
		c.RefreshLeeway = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Manager reads, validates and refreshes the session.
type Manager struct {
	store SessionStore
	cfg   Config
}

// NewManager returns a Manager persisting through store.
func NewManager(store SessionStore, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{store: store, cfg: cfg}
}

// Current returns the stored session as is, or nil.
func (m *Manager) Current(ctx context.Context) (*lead.Session, error) {
	return m.store.Session(ctx)
}

// EnsureValid returns a usable session or nil when the user must sign in.
// Remote sessions close to expiry are refreshed; a refused refresh clears
// the session.
func (m *Manager) EnsureValid(ctx context.Context) (*lead.Session, error) {
	sess, err := m.store.Session(ctx)
	if err != nil || sess == nil || sess.User.ID == "" {
		return nil, err
	}

	if sess.User.ID == AdminUserID {
		if _, err := ValidateToken(m.cfg.Secret, sess.AccessToken, m.cfg.Now()); err != nil {
			m.cfg.Logger.Info("auth: admin session rejected", "error", err)
			return nil, m.store.ClearSession(ctx)
		}
		return sess, nil
	}

	if m.cfg.Provider == nil {
		return sess, nil
	}
	now := m.cfg.Now().Unix()
	if sess.ExpiresAt == 0 || now < sess.ExpiresAt-int64(m.cfg.RefreshLeeway/time.Second) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		return sess, nil
	}

	fresh, err := m.cfg.Provider.Refresh(ctx, sess.RefreshToken)
	if errors.Is(err, ErrRefreshRejected) {
		m.cfg.Logger.Info("auth: refresh rejected, signing out", "user", sess.User.Email)
		return nil, m.store.ClearSession(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := m.store.PutSession(ctx, fresh); err != nil {
		return nil, err
	}
	m.cfg.Logger.Debug("auth: session refreshed", "user", fresh.User.Email)
	return &fresh, nil
}

// SignIn authenticates and persists the new session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*lead.Session, error) {
	if m.isAdmin(email, password) {
		tok, err := IssueToken(m.cfg.Secret, AdminUserID, email, m.cfg.AdminTTL, m.cfg.Now())
		if err != nil {
			return nil, err
		}
		sess := lead.Session{User: lead.User{ID: AdminUserID, Email: email}, AccessToken: tok}
		if m.cfg.AdminTTL > 0 {
			sess.ExpiresAt = m.cfg.Now().Add(m.cfg.AdminTTL).Unix()
		}
		if err := m.store.PutSession(ctx, sess); err != nil {
			return nil, err
		}
		m.cfg.Logger.Info("auth: admin signed in")
		return &sess, nil
	}

	if m.cfg.Provider == nil {
		return nil, ErrNotConfigured
	}
	sess, err := m.cfg.Provider.SignInPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: persist session: %w", err)
	}
	m.cfg.Logger.Info("auth: signed in", "user", sess.User.Email)
	return &sess, nil
}

// SignUp registers with the remote provider. A session carrying an access
// token is persisted; a pending confirmation is only returned.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*lead.Session, error) {
	if m.cfg.Provider == nil {
		return nil, ErrNotConfigured
	}
	sess, err := m.cfg.Provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken != "" {
		if err := m.store.PutSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("auth: persist session: %w", err)
		}
	}
	return &sess, nil
}

// SignOut forgets the session.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.store.ClearSession(ctx)
}

func (m *Manager) isAdmin(email, password string) bool {
	if m.cfg.AdminEmail == "" || m.cfg.AdminPasswordHash == "" || email != m.cfg.AdminEmail {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(m.cfg.AdminPasswordHash), []byte(password)) == nil
}

// HashPassword returns the bcrypt hash to put in AdminPasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}
