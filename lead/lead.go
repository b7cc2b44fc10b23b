// Package lead holds the records shared by the scraping side and the
// coordinator: groups, keyword profiles, extracted posts, stored leads,
// autorun state and the user session.
//
// Timestamps are Unix milliseconds so persisted documents keep the same
// shape on every transport.
package lead

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultProfileID is the protected profile that can never be removed.
const DefaultProfileID = "default"

// DefaultOrigin tags leads scraped from the social network.
const DefaultOrigin = "facebook"

// MinAutorunInterval is the lower bound for AutorunState.IntervalMs.
const MinAutorunInterval = 60_000

// textKeyLen is the number of runes of post text used by the text dedupe key.
const textKeyLen = 120

// Group is a monitored group page, keyed by slug.
type Group struct {
	Slug      string `json:"slug" db:"slug"`
	URL       string `json:"url" db:"url"`
	Enabled   bool   `json:"enabled" db:"enabled"`
	AddedAt   int64  `json:"addedAt" db:"added_at"`
	UpdatedAt int64  `json:"updatedAt" db:"updated_at"`
}

// Profile is a named include/exclude keyword set.
type Profile struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// Settings is the singleton settings document.
type Settings struct {
	ActiveProfileID string `json:"activeProfileId"`
}

// Author identifies who wrote a post. ProfileURL is empty when unknown.
type Author struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// ExtractedPost is the ephemeral result of reading one post container.
// Empty Permalink means the link could not be recovered.
type ExtractedPost struct {
	Text        string `json:"text"`
	Author      Author `json:"author"`
	Permalink   string `json:"permalink,omitempty"`
	GroupURL    string `json:"groupUrl"`
	ExtractedAt int64  `json:"extractedAt"`
}

// DedupeKey returns the key under which the post is deduplicated.
func (p ExtractedPost) DedupeKey() string {
	return DedupeKey(p.Permalink, p.Text)
}

// Status is the CRM state of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusFollowup  Status = "followup"
	StatusClosed    Status = "closed"
	StatusIgnored   Status = "ignored"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusFollowup, StatusClosed, StatusIgnored:
		return true
	}
	return false
}

// Post is the snapshot of a matched post kept inside a Lead.
type Post struct {
	Author    string `json:"author"`
	AuthorURL string `json:"authorUrl,omitempty"`
	Text      string `json:"text"`
	Permalink string `json:"permalink,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Lead is one deduplicated matched post plus its CRM annotations.
type Lead struct {
	DedupeKey   string `json:"dedupeKey"`
	ID          string `json:"id"`
	FirstSeenAt int64  `json:"firstSeenAt"`
	GroupSlug   string `json:"groupSlug"`
	GroupURL    string `json:"groupUrl"`
	ProfileName string `json:"profileName"`
	Post        Post   `json:"post"`
	Origin      string `json:"origin"`
	Status      Status `json:"status"`
	Note        string `json:"note"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// LeadPatch carries the CRM fields the dashboard may change. Nil fields
// are left untouched.
type LeadPatch struct {
	Status *Status `json:"status,omitempty"`
	Note   *string `json:"note,omitempty"`
}

// AutorunState is the singleton state of the background autorun loop.
type AutorunState struct {
	Running     bool   `json:"running"`
	TabHandle   string `json:"tabHandle,omitempty"`
	CursorIndex int    `json:"cursorIndex"`
	IntervalMs  int64  `json:"intervalMs"`
	LastRunAt   int64  `json:"lastRunAt"`
}

// DefaultAutorunState is the state used before anything was persisted.
func DefaultAutorunState() AutorunState {
	return AutorunState{IntervalMs: MinAutorunInterval}
}

// User is the authenticated principal of a Session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the persisted authentication session. ExpiresAt is in Unix
// seconds, zero when the session does not expire.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// DedupeKey derives the deterministic dedupe key of a post:
// "u:<permalink>" when a permalink is known, otherwise
// "t:<lowercased first 120 runes of text>".
func DedupeKey(permalink, text string) string {
	if permalink != "" {
		return "u:" + permalink
	}
	return "t:" + strings.ToLower(truncateRunes(text, textKeyLen))
}

// Millis converts t to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
