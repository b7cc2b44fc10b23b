// Package message defines the request/response protocol spoken between the
// content side (scraper, widget, dashboard tools) and the coordinator.
//
// Every operation is one Request variant. Variants are dispatched through
// the Handler visitor, so adding a variant without teaching every Handler
// about it fails to compile.
package message

import (
	"context"

	"github.com/hazyhaar/leadscout/lead"
)

// Type is the wire discriminator of a request.
type Type string

const (
	TypeAuthStatus               Type = "AUTH_STATUS"
	TypeOpportunityFound         Type = "OPPORTUNITY_FOUND"
	TypeGroupCanInject           Type = "GROUP_CAN_INJECT"
	TypeGroupEnable              Type = "GROUP_ENABLE"
	TypeGroupDisable             Type = "GROUP_DISABLE"
	TypeListGroups               Type = "DB_LIST_GROUPS"
	TypeRemoveGroup              Type = "DB_REMOVE_GROUP"
	TypeSettingsGet              Type = "SETTINGS_GET"
	TypeSettingsSetActiveProfile Type = "SETTINGS_SET_ACTIVE_PROFILE"
	TypeProfilesList             Type = "PROFILES_LIST"
	TypeProfilesGet              Type = "PROFILES_GET"
	TypeProfilesUpsert           Type = "PROFILES_UPSERT"
	TypeProfilesRemove           Type = "PROFILES_REMOVE"
	TypeAutorunStatus            Type = "AUTORUN_STATUS"
	TypeAutorunStart             Type = "AUTORUN_START"
	TypeAutorunStop              Type = "AUTORUN_STOP"
	TypeAutorunReset             Type = "AUTORUN_RESET"
	TypeLeadsList                Type = "LEADS_LIST"
	TypeLeadsPatch               Type = "LEADS_PATCH"
	TypeLeadsRemove              Type = "LEADS_REMOVE"
	TypeLeadsClear               Type = "LEADS_CLEAR"
)

// Request is implemented only by the variants declared in this package.
type Request interface {
	Type() Type
	accept(ctx context.Context, h Handler) Response
}

// Handler serves every request variant.
type Handler interface {
	AuthStatus(ctx context.Context, r AuthStatus) Response
	OpportunityFound(ctx context.Context, r OpportunityFound) Response
	GroupCanInject(ctx context.Context, r GroupCanInject) Response
	GroupEnable(ctx context.Context, r GroupEnable) Response
	GroupDisable(ctx context.Context, r GroupDisable) Response
	ListGroups(ctx context.Context, r ListGroups) Response
	RemoveGroup(ctx context.Context, r RemoveGroup) Response
	SettingsGet(ctx context.Context, r SettingsGet) Response
	SettingsSetActiveProfile(ctx context.Context, r SettingsSetActiveProfile) Response
	ProfilesList(ctx context.Context, r ProfilesList) Response
	ProfilesGet(ctx context.Context, r ProfilesGet) Response
	ProfilesUpsert(ctx context.Context, r ProfilesUpsert) Response
	ProfilesRemove(ctx context.Context, r ProfilesRemove) Response
	AutorunStatus(ctx context.Context, r AutorunStatus) Response
	AutorunStart(ctx context.Context, r AutorunStart) Response
	AutorunStop(ctx context.Context, r AutorunStop) Response
	AutorunReset(ctx context.Context, r AutorunReset) Response
	LeadsList(ctx context.Context, r LeadsList) Response
	LeadsPatch(ctx context.Context, r LeadsPatch) Response
	LeadsRemove(ctx context.Context, r LeadsRemove) Response
	LeadsClear(ctx context.Context, r LeadsClear) Response
}

// Dispatch routes req to the matching Handler method.
func Dispatch(ctx context.Context, h Handler, req Request) Response {
	return req.accept(ctx, h)
}

// Opportunity is the payload of OPPORTUNITY_FOUND: one matched post.
type Opportunity struct {
	Slug        string    `json:"slug"`
	GroupURL    string    `json:"groupUrl"`
	ProfileName string    `json:"profileName"`
	Post        lead.Post `json:"post"`
}

type AuthStatus struct{}

type OpportunityFound struct {
	Payload Opportunity `json:"payload"`
}

type GroupCanInject struct {
	Slug string `json:"slug"`
}

type GroupEnable struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

type GroupDisable struct {
	Slug string `json:"slug"`
}

type ListGroups struct{}

type RemoveGroup struct {
	Slug string `json:"slug"`
}

type SettingsGet struct{}

type SettingsSetActiveProfile struct {
	ProfileID string `json:"profileId"`
}

type ProfilesList struct{}

type ProfilesGet struct {
	ID string `json:"id"`
}

type ProfilesUpsert struct {
	Profile lead.Profile `json:"profile"`
}

type ProfilesRemove struct {
	ID string `json:"id"`
}

type AutorunStatus struct{}

// AutorunStart starts the loop. Zero IntervalMs selects the default
// interval; values below lead.MinAutorunInterval are raised to it.
type AutorunStart struct {
	IntervalMs int64 `json:"intervalMs,omitempty"`
}

type AutorunStop struct{}

type AutorunReset struct{}

type LeadsList struct{}

type LeadsPatch struct {
	Key    string       `json:"key"`
	Status *lead.Status `json:"status,omitempty"`
	Note   *string      `json:"note,omitempty"`
}

type LeadsRemove struct {
	Key string `json:"key"`
}

type LeadsClear struct{}

func (AuthStatus) Type() Type               { return TypeAuthStatus }
func (OpportunityFound) Type() Type         { return TypeOpportunityFound }
func (GroupCanInject) Type() Type           { return TypeGroupCanInject }
func (GroupEnable) Type() Type              { return TypeGroupEnable }
func (GroupDisable) Type() Type             { return TypeGroupDisable }
func (ListGroups) Type() Type               { return TypeListGroups }
func (RemoveGroup) Type() Type              { return TypeRemoveGroup }
func (SettingsGet) Type() Type              { return TypeSettingsGet }
func (SettingsSetActiveProfile) Type() Type { return TypeSettingsSetActiveProfile }
func (ProfilesList) Type() Type             { return TypeProfilesList }
func (ProfilesGet) Type() Type              { return TypeProfilesGet }
func (ProfilesUpsert) Type() Type           { return TypeProfilesUpsert }
func (ProfilesRemove) Type() Type           { return TypeProfilesRemove }
func (AutorunStatus) Type() Type            { return TypeAutorunStatus }
func (AutorunStart) Type() Type             { return TypeAutorunStart }
func (AutorunStop) Type() Type              { return TypeAutorunStop }
func (AutorunReset) Type() Type             { return TypeAutorunReset }
func (LeadsList) Type() Type                { return TypeLeadsList }
func (LeadsPatch) Type() Type               { return TypeLeadsPatch }
func (LeadsRemove) Type() Type              { return TypeLeadsRemove }
func (LeadsClear) Type() Type               { return TypeLeadsClear }

func (r AuthStatus) accept(ctx context.Context, h Handler) Response { return h.AuthStatus(ctx, r) }
func (r OpportunityFound) accept(ctx context.Context, h Handler) Response {
	return h.OpportunityFound(ctx, r)
}
func (r GroupCanInject) accept(ctx context.Context, h Handler) Response {
	return h.GroupCanInject(ctx, r)
}
func (r GroupEnable) accept(ctx context.Context, h Handler) Response  { return h.GroupEnable(ctx, r) }
func (r GroupDisable) accept(ctx context.Context, h Handler) Response { return h.GroupDisable(ctx, r) }
func (r ListGroups) accept(ctx context.Context, h Handler) Response   { return h.ListGroups(ctx, r) }
func (r RemoveGroup) accept(ctx context.Context, h Handler) Response  { return h.RemoveGroup(ctx, r) }
func (r SettingsGet) accept(ctx context.Context, h Handler) Response  { return h.SettingsGet(ctx, r) }
func (r SettingsSetActiveProfile) accept(ctx context.Context, h Handler) Response {
	return h.SettingsSetActiveProfile(ctx, r)
}
func (r ProfilesList) accept(ctx context.Context, h Handler) Response   { return h.ProfilesList(ctx, r) }
func (r ProfilesGet) accept(ctx context.Context, h Handler) Response    { return h.ProfilesGet(ctx, r) }
func (r ProfilesUpsert) accept(ctx context.Context, h Handler) Response { return h.ProfilesUpsert(ctx, r) }
func (r ProfilesRemove) accept(ctx context.Context, h Handler) Response { return h.ProfilesRemove(ctx, r) }
func (r AutorunStatus) accept(ctx context.Context, h Handler) Response  { return h.AutorunStatus(ctx, r) }
func (r AutorunStart) accept(ctx context.Context, h Handler) Response   { return h.AutorunStart(ctx, r) }
func (r AutorunStop) accept(ctx context.Context, h Handler) Response    { return h.AutorunStop(ctx, r) }
func (r AutorunReset) accept(ctx context.Context, h Handler) Response   { return h.AutorunReset(ctx, r) }
func (r LeadsList) accept(ctx context.Context, h Handler) Response      { return h.LeadsList(ctx, r) }
func (r LeadsPatch) accept(ctx context.Context, h Handler) Response     { return h.LeadsPatch(ctx, r) }
func (r LeadsRemove) accept(ctx context.Context, h Handler) Response    { return h.LeadsRemove(ctx, r) }
func (r LeadsClear) accept(ctx context.Context, h Handler) Response     { return h.LeadsClear(ctx, r) }
