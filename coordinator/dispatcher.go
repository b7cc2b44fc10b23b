package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
)

// Authenticator resolves the current session. EnsureValid returns nil when
// the user must sign in.
type Authenticator interface {
	Current(ctx context.Context) (*lead.Session, error)
	EnsureValid(ctx context.Context) (*lead.Session, error)
}

// Dispatcher serves the message protocol on top of a Coordinator. Every
// request except AUTH_STATUS and OPPORTUNITY_FOUND requires a valid
// session.
type Dispatcher struct {
	c      *Coordinator
	auth   Authenticator
	logger *slog.Logger
}

var _ message.Handler = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher. A nil auth disables the session gate.
func NewDispatcher(c *Coordinator, auth Authenticator) *Dispatcher {
	return &Dispatcher{c: c, auth: auth, logger: c.cfg.Logger}
}

// Handle dispatches req.
func (d *Dispatcher) Handle(ctx context.Context, req message.Request) message.Response {
	return message.Dispatch(ctx, d, req)
}

// Send implements message.Sender.
func (d *Dispatcher) Send(ctx context.Context, req message.Request) (message.Response, error) {
	return d.Handle(ctx, req), nil
}

// gate reports the failed response to return when no valid session exists.
func (d *Dispatcher) gate(ctx context.Context) (message.Response, bool) {
	if d.auth == nil {
		return message.Response{}, true
	}
	sess, err := d.auth.EnsureValid(ctx)
	if err != nil {
		d.logger.Warn("coordinator: session check failed", "error", err)
		return message.Fail(message.CodeNotAuthenticated, err.Error()), false
	}
	if sess == nil {
		return message.Fail(message.CodeNotAuthenticated, ""), false
	}
	return message.Response{}, true
}

// authed runs fn behind the session gate.
func (d *Dispatcher) authed(ctx context.Context, fn func() (message.Response, error)) message.Response {
	if resp, ok := d.gate(ctx); !ok {
		return resp
	}
	return d.reply(fn())
}

func (d *Dispatcher) reply(resp message.Response, err error) message.Response {
	if err != nil {
		code := codeFor(err)
		if code == message.CodeError {
			d.logger.Error("coordinator: request failed", "error", err)
		}
		return message.Fail(code, err.Error())
	}
	resp.OK = true
	return resp
}

func codeFor(err error) message.Code {
	switch {
	case errors.Is(err, ErrLimitReached):
		return message.CodeLimitReached
	case errors.Is(err, ErrInvalidInput), errors.Is(err, message.ErrInvalidRequest):
		return message.CodeInvalidRequest
	case errors.Is(err, ErrNotFound):
		return message.CodeNotFound
	case errors.Is(err, message.ErrUnknownMessage):
		return message.CodeUnknownMessage
	case errors.Is(err, context.DeadlineExceeded):
		return message.CodeTimeout
	}
	return message.CodeError
}

// AuthStatus reports the stored session without refreshing or clearing it.
func (d *Dispatcher) AuthStatus(ctx context.Context, _ message.AuthStatus) message.Response {
	if d.auth == nil {
		return message.Response{OK: true}
	}
	sess, err := d.auth.Current(ctx)
	return d.reply(message.Response{Session: sess}, err)
}

func (d *Dispatcher) OpportunityFound(ctx context.Context, r message.OpportunityFound) message.Response {
	deduped, err := d.c.RecordOpportunity(ctx, r.Payload)
	return d.reply(message.Response{Deduped: deduped}, err)
}

func (d *Dispatcher) GroupCanInject(ctx context.Context, r message.GroupCanInject) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		dec, err := d.c.CanInjectOrToggle(ctx, r.Slug)
		return message.Response{
			Allowed:  dec.Allowed,
			Existing: dec.Existing,
			Active:   dec.ActiveCount,
			Limit:    dec.Limit,
		}, err
	})
}

func (d *Dispatcher) GroupEnable(ctx context.Context, r message.GroupEnable) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		g, err := d.c.EnableGroup(ctx, r.Slug, r.URL)
		return message.Response{Group: &g}, err
	})
}

func (d *Dispatcher) GroupDisable(ctx context.Context, r message.GroupDisable) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		g, err := d.c.DisableGroup(ctx, r.Slug)
		return message.Response{Group: g}, err
	})
}

func (d *Dispatcher) ListGroups(ctx context.Context, _ message.ListGroups) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		gs, err := d.c.ListGroups(ctx)
		return message.Response{Groups: gs}, err
	})
}

func (d *Dispatcher) RemoveGroup(ctx context.Context, r message.RemoveGroup) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		ok, err := d.c.RemoveGroup(ctx, r.Slug)
		return message.Response{Removed: ok}, err
	})
}

func (d *Dispatcher) SettingsGet(ctx context.Context, _ message.SettingsGet) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.Settings(ctx)
		return message.Response{Settings: &st}, err
	})
}

func (d *Dispatcher) SettingsSetActiveProfile(ctx context.Context, r message.SettingsSetActiveProfile) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.SetActiveProfile(ctx, r.ProfileID)
		return message.Response{Settings: &st}, err
	})
}

func (d *Dispatcher) ProfilesList(ctx context.Context, _ message.ProfilesList) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		ps, err := d.c.ListProfiles(ctx)
		return message.Response{Profiles: ps}, err
	})
}

func (d *Dispatcher) ProfilesGet(ctx context.Context, r message.ProfilesGet) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		p, err := d.c.GetProfile(ctx, r.ID)
		return message.Response{Profile: p}, err
	})
}

func (d *Dispatcher) ProfilesUpsert(ctx context.Context, r message.ProfilesUpsert) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		p, err := d.c.UpsertProfile(ctx, r.Profile)
		return message.Response{Profile: &p}, err
	})
}

func (d *Dispatcher) ProfilesRemove(ctx context.Context, r message.ProfilesRemove) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		ok, err := d.c.RemoveProfile(ctx, r.ID)
		return message.Response{Removed: ok}, err
	})
}

func (d *Dispatcher) AutorunStatus(ctx context.Context, _ message.AutorunStatus) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.AutorunStatus(ctx)
		return message.Response{State: &st}, err
	})
}

func (d *Dispatcher) AutorunStart(ctx context.Context, r message.AutorunStart) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.AutorunStart(ctx, r.IntervalMs)
		return message.Response{State: &st}, err
	})
}

func (d *Dispatcher) AutorunStop(ctx context.Context, _ message.AutorunStop) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.AutorunStop(ctx)
		return message.Response{State: &st}, err
	})
}

func (d *Dispatcher) AutorunReset(ctx context.Context, _ message.AutorunReset) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		st, err := d.c.AutorunReset(ctx)
		return message.Response{State: &st}, err
	})
}

func (d *Dispatcher) LeadsList(ctx context.Context, _ message.LeadsList) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		ls, err := d.c.ListLeads(ctx)
		return message.Response{Leads: ls}, err
	})
}

func (d *Dispatcher) LeadsPatch(ctx context.Context, r message.LeadsPatch) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		l, err := d.c.PatchLead(ctx, r.Key, lead.LeadPatch{Status: r.Status, Note: r.Note})
		return message.Response{Lead: &l}, err
	})
}

func (d *Dispatcher) LeadsRemove(ctx context.Context, r message.LeadsRemove) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		ok, err := d.c.RemoveLead(ctx, r.Key)
		return message.Response{Removed: ok}, err
	})
}

func (d *Dispatcher) LeadsClear(ctx context.Context, _ message.LeadsClear) message.Response {
	return d.authed(ctx, func() (message.Response, error) {
		n, err := d.c.ClearLeads(ctx)
		return message.Response{Removed: n > 0}, err
	})
}
