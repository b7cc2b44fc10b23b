package message

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/leadscout/lead"
)

// Code classifies a failed response.
type Code string

const (
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeUnknownMessage   Code = "UNKNOWN_MESSAGE"
	CodeLimitReached     Code = "LIMIT_REACHED"
	CodeTimeout          Code = "TIMEOUT"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeNotFound         Code = "NOT_FOUND"
	CodeError            Code = "ERROR"
)

// ErrUnknownMessage is returned by Decode for an unregistered type.
var ErrUnknownMessage = errors.New("message: unknown message type")

// ErrInvalidRequest is returned by Decode for malformed JSON.
var ErrInvalidRequest = errors.New("message: invalid request")

// Response is the single reply shape of every request. Only the fields of
// the answered operation are set. allowed, existing and removed are always
// written since their false or null value is an answer.
type Response struct {
	OK    bool   `json:"ok"`
	Code  Code   `json:"code,omitempty"`
	Error string `json:"error,omitempty"`

	Session  *lead.Session      `json:"session,omitempty"`
	Deduped  bool               `json:"deduped,omitempty"`
	Allowed  bool               `json:"allowed"`
	Existing *lead.Group        `json:"existing"`
	Active   int                `json:"activeCount,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Group    *lead.Group        `json:"group,omitempty"`
	Groups   []lead.Group       `json:"groups,omitempty"`
	Removed  bool               `json:"removed"`
	Settings *lead.Settings     `json:"settings,omitempty"`
	Profiles []lead.Profile     `json:"profiles,omitempty"`
	Profile  *lead.Profile      `json:"profile,omitempty"`
	State    *lead.AutorunState `json:"state,omitempty"`
	Leads    []lead.Lead        `json:"leads,omitempty"`
	Lead     *lead.Lead         `json:"lead,omitempty"`
}

// Fail builds a failed response.
func Fail(code Code, detail string) Response {
	return Response{Code: code, Error: detail}
}

// Error is a failed Response seen as a Go error.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("message: %s", e.Code)
	}
	return fmt.Sprintf("message: %s: %s", e.Code, e.Detail)
}

// Err returns nil for a successful response and an *Error otherwise.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	code := r.Code
	if code == "" {
		code = CodeError
	}
	return &Error{Code: code, Detail: r.Error}
}

// CodeOf extracts the response code carried by err, or "" if err is not
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
