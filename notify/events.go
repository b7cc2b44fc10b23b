package notify

import (
	"unicode/utf8"

	"github.com/hazyhaar/leadscout/lead"
)

const previewLen = 120

// LeadFound describes a newly stored lead.
func LeadFound(l lead.Lead) *Event {
	return &Event{
		Kind:  KindLeadFound,
		Title: "Oportunidade detectada (" + l.ProfileName + ")",
		Body:  l.Post.Author + ": " + preview(l.Post.Text) + "...",
		URL:   l.Post.Permalink,
		Lead:  &l,
	}
}

// GroupEnabled describes a group switched on.
func GroupEnabled(g lead.Group) *Event {
	return &Event{Kind: KindGroupEnabled, Title: "Notificações ativadas", Body: "Grupo: " + g.Slug, URL: g.URL, Group: &g}
}

// GroupDisabled describes a group switched off.
func GroupDisabled(slug string) *Event {
	return &Event{Kind: KindGroupDisabled, Title: "Notificações desativadas", Body: "Grupo: " + slug}
}

// AutorunStarted and AutorunPaused describe the autorun loop changing state.
func AutorunStarted() *Event {
	return &Event{Kind: KindAutorunStarted, Title: "Autorun", Body: "Iniciado"}
}

func AutorunPaused() *Event {
	return &Event{Kind: KindAutorunPaused, Title: "Autorun", Body: "Pausado"}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	r := []rune(s)
	return string(r[:previewLen])
}
