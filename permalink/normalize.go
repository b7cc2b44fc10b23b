// Package permalink turns raw, tracking-polluted or relative post links into
// canonical URLs that can be compared for deduplication.
//
// Every function here is pure: the same input always yields the same output.
package permalink

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultOrigin is the origin relative links are resolved against when the
// caller has nothing better.
const DefaultOrigin = "https://www.facebook.com"

// postTracking are the query parameters dropped from post links.
var postTracking = []string{
	"__cft__", "__tn__", "ref", "refid", "acontext",
	"notif_id", "notif_t", "rdid", "share_url", "fbclid",
}

// linkTracking are the parameters dropped by Clean. It also removes
// comment_id, which identifies a comment rather than the linked resource.
var linkTracking = append([]string{"comment_id"}, postTracking...)

var groupPattern = regexp.MustCompile(`^https://(?:www|web|m)\.facebook\.com/groups/([^/?#]+)`)

// Normalize canonicalises a post link found on a page served from origin.
//
// Recognised shapes:
//   - /groups/<id>/posts/<id>/ paths, returned without query and with one
//     trailing slash;
//   - permalink.php links, keeping only story_fbid and id;
//   - any URL carrying both story_fbid and id, rewritten to
//     <origin>/permalink.php?story_fbid=X&id=Y.
//
// Other links are returned without fragment and tracking parameters. The
// second result is false for empty input or links that are not web URLs.
func Normalize(raw, origin string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := resolve(raw, origin)
	if err != nil {
		return fallback(raw)
	}
	if u == nil {
		return "", false
	}

	q := u.Query()
	stripTracking(q, postTracking)

	switch {
	case strings.Contains(u.Path, "/groups/") && strings.Contains(u.Path, "/posts/"):
		return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + "/", true

	case strings.HasSuffix(u.Path, "/permalink.php"):
		return canonicalPermalink(u.Scheme, u.Host, u.Path, q.Get("story_fbid"), q.Get("id")), true

	case q.Get("story_fbid") != "" && q.Get("id") != "":
		return canonicalPermalink(u.Scheme, u.Host, "/permalink.php", q.Get("story_fbid"), q.Get("id")), true
	}

	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// Clean removes tracking parameters and the fragment from any link and
// resolves it against origin. It is used for author profile links.
func Clean(raw, origin string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := resolve(raw, origin)
	if err != nil {
		return fallback(raw)
	}
	if u == nil {
		return "", false
	}
	q := u.Query()
	stripTracking(q, linkTracking)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// IsPermalink reports whether href already has one of the recognised post
// link shapes.
func IsPermalink(href string) bool {
	return strings.Contains(href, "/posts/") ||
		strings.Contains(href, "permalink.php") ||
		strings.Contains(href, "story_fbid=")
}

// IsGroupPostLink reports whether href is a post link inside a group.
func IsGroupPostLink(href string) bool {
	return strings.Contains(href, "/groups/") && IsPermalink(href)
}

// GroupSlug extracts the group slug from a group page URL.
func GroupSlug(pageURL string) (string, bool) {
	m := groupPattern.FindStringSubmatch(pageURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// GroupURL builds the canonical URL of a group page.
func GroupURL(origin, slug string) string {
	if origin == "" {
		origin = DefaultOrigin
	}
	return strings.TrimRight(origin, "/") + "/groups/" + slug + "/"
}

// resolve parses raw relative to origin. A nil URL with nil error means the
// link parsed but is not an http(s) URL.
func resolve(raw, origin string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	base, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	u := base.ResolveReference(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, nil
	}
	return u, nil
}

func stripTracking(q url.Values, names []string) {
	for key := range q {
		for _, name := range names {
			if key == name || strings.HasPrefix(key, name+"[") {
				delete(q, key)
				break
			}
		}
	}
}

// canonicalPermalink writes story_fbid before id, which url.Values.Encode
// would not preserve.
func canonicalPermalink(scheme, host, path, story, id string) string {
	var parts []string
	if story != "" {
		parts = append(parts, "story_fbid="+url.QueryEscape(story))
	}
	if id != "" {
		parts = append(parts, "id="+url.QueryEscape(id))
	}
	out := scheme + "://" + host + path
	if len(parts) > 0 {
		out += "?" + strings.Join(parts, "&")
	}
	return out
}

// fallback is the best-effort cleanup used when the link does not parse.
func fallback(raw string) (string, bool) {
	s := strings.SplitN(raw, "?", 2)[0]
	s = strings.SplitN(s, "&", 2)[0]
	s = strings.SplitN(s, "#", 2)[0]
	if s == "" {
		return "", false
	}
	return s, true
}
