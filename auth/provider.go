package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/leadscout/internal/safe"
	"github.com/hazyhaar/leadscout/lead"
)

// Provider is a remote identity provider.
type Provider interface {
	SignInPassword(ctx context.Context, email, password string) (lead.Session, error)
	SignUp(ctx context.Context, email, password string) (lead.Session, error)
	Refresh(ctx context.Context, refreshToken string) (lead.Session, error)
}

// HTTPProvider talks to a GoTrue-style REST API
// (POST /auth/v1/token?grant_type=..., POST /auth/v1/signup).
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (r tokenResponse) session() lead.Session {
	return lead.Session{
		User:         lead.User{ID: r.User.ID, Email: r.User.Email},
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
}

// SignInPassword runs the password grant.
func (p *HTTPProvider) SignInPassword(ctx context.Context, email, password string) (lead.Session, error) {
	var out tokenResponse
	status, err := p.post(ctx, "/auth/v1/token?grant_type=password",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return lead.Session{}, err
	}
	if status >= 400 {
		return lead.Session{}, fmt.Errorf("%w: status %d", ErrInvalidCredentials, status)
	}
	return out.session(), nil
}

// SignUp registers a user. When the provider requires confirmation the
// returned session has no access token and a "pending" user id.
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (lead.Session, error) {
	var out tokenResponse
	status, err := p.post(ctx, "/auth/v1/signup",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return lead.Session{}, err
	}
	if status >= 400 {
		return lead.Session{}, fmt.Errorf("auth: signup failed: status %d", status)
	}
	if out.AccessToken == "" {
		id := out.User.ID
		if id == "" {
			id = "pending"
		}
		return lead.Session{User: lead.User{ID: id, Email: email}}, nil
	}
	return out.session(), nil
}

// Refresh runs the refresh_token grant.
func (p *HTTPProvider) Refresh(ctx context.Context, refreshToken string) (lead.Session, error) {
	var out tokenResponse
	status, err := p.post(ctx, "/auth/v1/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, &out)
	if err != nil {
		return lead.Session{}, err
	}
	if status >= 400 {
		return lead.Session{}, fmt.Errorf("%w: status %d", ErrRefreshRejected, status)
	}
	return out.session(), nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body any, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.BaseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.APIKey)
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("auth: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := safe.LimitedReadAll(resp.Body, safe.MaxResponseBody)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("auth: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("auth: decode response: %w", err)
	}
	return resp.StatusCode, nil
}
