package auth

import "errors"

// ErrNotConfigured is returned when a remote operation is attempted
// without an identity provider.
var ErrNotConfigured = errors.New("auth: identity provider not configured")

// ErrInvalidCredentials is returned when a sign-in is refused.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrRefreshRejected is returned when the provider refuses a refresh token.
var ErrRefreshRejected = errors.New("auth: refresh rejected")

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("auth: signing secret too short")
