// Package classify decides whether a post is a lead for a keyword profile.
//
// Matching is a plain case-insensitive substring test. There is no
// stemming and no tokenisation, so a profile is easy to audit by reading
// its keyword lists.
package classify

import (
	"strings"

	"github.com/hazyhaar/leadscout/lead"
)

// MaxKeywords bounds the size of one keyword list.
const MaxKeywords = 200

// Matches reports whether text contains at least one include keyword and
// no exclude keyword. An empty include list never matches. Blank keywords
// are ignored.
func Matches(text string, p lead.Profile) bool {
	t := strings.ToLower(text)
	return containsAny(t, p.Include) && !containsAny(t, p.Exclude)
}

// Hits returns the include keywords found in text, in profile order.
func Hits(text string, p lead.Profile) []string {
	t := strings.ToLower(text)
	var out []string
	for _, k := range p.Include {
		k = strings.TrimSpace(k)
		if k != "" && strings.Contains(t, strings.ToLower(k)) {
			out = append(out, k)
		}
	}
	return out
}

func containsAny(lowered string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// NormalizeKeywords parses a comma-separated keyword input: entries are
// trimmed, blanks dropped and the list capped at MaxKeywords.
func NormalizeKeywords(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// Dedupe removes case-insensitive duplicates and blanks from keywords,
// keeping the first occurrence of each.
func Dedupe(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	if len(out) > MaxKeywords {
		out = out[:MaxKeywords]
	}
	return out
}

// DefaultProfiles returns the built-in profiles a fresh store is seeded
// with. The "default" profile is protected.
func DefaultProfiles() []lead.Profile {
	return []lead.Profile{
		{
			ID:      lead.DefaultProfileID,
			Name:    "Padrão",
			Include: []string{"vaga", "freelancer", "orçamento", "indicação", "procuro", "preciso"},
			Exclude: []string{"curso", "mentoria"},
		},
		{
			ID:      "psicologo",
			Name:    "Psicólogo",
			Include: []string{"terapia", "psicólogo", "psicologa", "consulta", "atendimento", "online"},
			Exclude: []string{"curso", "formação", "treinamento"},
		},
		{
			ID:      "designer",
			Name:    "Designer",
			Include: []string{"logo", "identidade visual", "branding", "social media", "layout", "designer"},
			Exclude: []string{"tutorial", "curso"},
		},
	}
}
