package coordinator

import "errors"

// ErrLimitReached is returned when enabling a group would exceed the
// active group limit.
var ErrLimitReached = errors.New("coordinator: active group limit reached")

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("coordinator: invalid input")

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("coordinator: not found")

// ErrNoNavigator is returned by AutorunTick when no browser is attached.
var ErrNoNavigator = errors.New("coordinator: no navigator attached")
