// Package extractor reads one feed post (author, text, permalink) out of a
// rendered group page.
//
// The host page is virtualised and re-rendered constantly, so every lookup
// is anchored on the post's feed item (div[aria-posinset]) and every field
// degrades to a zero value rather than failing the post.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/pace"
	"github.com/hazyhaar/leadscout/permalink"
)

// Selectors used against the host page.
const (
	PostSelector     = "div[aria-posinset]"
	profileNameSel   = `[data-ad-rendering-role="profile_name"]`
	storyMessageSel  = `[data-ad-rendering-role="story_message"]`
	groupUserLinkSel = `a[role="link"][href*="/groups/"][href*="/user/"]`
	profilePHPSel    = `a[role="link"][href*="profile.php"]`
	anyRoleLinkSel   = `a[role="link"][href]`
	anchorSel        = `a[role="link"], a`
	newTabAnchorSel  = `a[role="link"][target="_blank"], a[target="_blank"]`
)

// UnknownAuthor is the display name used when no author could be found.
const UnknownAuthor = "?"

// Config tunes an Extractor.
type Config struct {
	// Origin resolves relative links. Default: permalink.DefaultOrigin.
	Origin string
	// GroupURL is stamped on every extracted post.
	GroupURL string
	// MaterializeTimeout bounds the wait for a late link. Default: 1.5s.
	MaterializeTimeout time.Duration
	// DelayMin and DelayMax bound the random pause before reading a post.
	// Default: 200ms to 800ms.
	DelayMin time.Duration
	DelayMax time.Duration
	// Logger. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Origin == "" {
		c.Origin = permalink.DefaultOrigin
	}
	if c.MaterializeTimeout <= 0 {
		c.MaterializeTimeout = 1500 * time.Millisecond
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 200 * time.Millisecond
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin + 600*time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor turns post containers into lead.ExtractedPost values.
type Extractor struct {
	cfg  Config
	pace *pace.Pacer
}

// New returns an Extractor pacing its reads with p.
func New(cfg Config, p *pace.Pacer) *Extractor {
	cfg.defaults()
	if p == nil {
		p = pace.New()
	}
	return &Extractor{cfg: cfg, pace: p}
}

// Extract reads the post rooted at (or containing) el. Missing author,
// text or permalink yield zero values; an error is returned only when the
// page backend itself fails or ctx ends.
func (x *Extractor) Extract(ctx context.Context, el Element) (lead.ExtractedPost, error) {
	if err := x.pace.Sleep(ctx, x.cfg.DelayMin, x.cfg.DelayMax); err != nil {
		return lead.ExtractedPost{}, err
	}

	root, err := postRoot(ctx, el)
	if err != nil {
		return lead.ExtractedPost{}, fmt.Errorf("extractor: post root: %w", err)
	}

	text, err := x.text(ctx, root)
	if err != nil {
		return lead.ExtractedPost{}, fmt.Errorf("extractor: text: %w", err)
	}
	author, err := x.author(ctx, root)
	if err != nil {
		return lead.ExtractedPost{}, fmt.Errorf("extractor: author: %w", err)
	}
	link, err := x.permalink(ctx, root)
	if err != nil {
		return lead.ExtractedPost{}, fmt.Errorf("extractor: permalink: %w", err)
	}

	x.cfg.Logger.Debug("extractor: post read",
		"author", author.Name, "author_url", author.ProfileURL,
		"permalink", link, "text_len", len(text))

	return lead.ExtractedPost{
		Text:        text,
		Author:      author,
		Permalink:   link,
		GroupURL:    x.cfg.GroupURL,
		ExtractedAt: lead.Millis(x.pace.Now()),
	}, nil
}

func postRoot(ctx context.Context, el Element) (Element, error) {
	root, err := el.Closest(ctx, PostSelector)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return el, nil
	}
	return root, nil
}

func (x *Extractor) text(ctx context.Context, root Element) (string, error) {
	msg, err := root.QuerySelector(ctx, storyMessageSel)
	if err != nil || msg == nil {
		return "", err
	}
	t, err := msg.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(t), nil
}

func (x *Extractor) author(ctx context.Context, root Element) (lead.Author, error) {
	a, err := authorLink(ctx, root)
	if err != nil {
		return lead.Author{}, err
	}
	if a == nil {
		return lead.Author{Name: UnknownAuthor}, nil
	}

	nameNode := a
	for _, sel := range []string{"span", "b"} {
		n, err := a.QuerySelector(ctx, sel)
		if err != nil {
			return lead.Author{}, err
		}
		if n != nil {
			nameNode = n
			break
		}
	}
	raw, err := nameNode.Text(ctx)
	if err != nil {
		return lead.Author{}, err
	}
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		name = UnknownAuthor
	}

	href, ok, err := a.Attribute(ctx, "href")
	if err != nil {
		return lead.Author{}, err
	}
	if !ok || href == "" {
		if href, err = a.Href(ctx); err != nil {
			return lead.Author{}, err
		}
	}
	profileURL, _ := permalink.Clean(href, x.cfg.Origin)
	return lead.Author{Name: name, ProfileURL: profileURL}, nil
}

// authorLink prefers links inside the profile_name region, then falls back
// to profile-shaped links anywhere in the post.
func authorLink(ctx context.Context, root Element) (Element, error) {
	header, err := root.QuerySelector(ctx, profileNameSel)
	if err != nil {
		return nil, err
	}
	if header != nil {
		for _, sel := range []string{groupUserLinkSel, profilePHPSel, anyRoleLinkSel} {
			a, err := header.QuerySelector(ctx, sel)
			if err != nil || a != nil {
				return a, err
			}
		}
	}
	for _, sel := range []string{groupUserLinkSel, profilePHPSel} {
		a, err := root.QuerySelector(ctx, sel)
		if err != nil || a != nil {
			return a, err
		}
	}
	return nil, nil
}

func (x *Extractor) permalink(ctx context.Context, root Element) (string, error) {
	anchors, err := root.QuerySelectorAll(ctx, anchorSel)
	if err != nil {
		return "", err
	}
	for _, a := range anchors {
		h, err := a.Href(ctx)
		if err != nil {
			return "", err
		}
		if permalink.IsGroupPostLink(h) {
			link, _ := permalink.Normalize(h, x.cfg.Origin)
			return link, nil
		}
	}

	weird, err := weirdAnchor(ctx, root)
	if err != nil || weird == nil {
		return "", err
	}

	// The backend waits up to the timeout itself; the deadline stops one
	// that stalls past it.
	timeout := x.cfg.MaterializeTimeout
	mctx, cancel := context.WithTimeout(ctx, timeout+timeout/2)
	got, err := weird.Materialize(mctx, timeout)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		x.cfg.Logger.Debug("extractor: materialize failed", "error", err)
		return "", nil
	}
	if !permalink.IsPermalink(got) {
		return "", nil
	}
	link, _ := permalink.Normalize(got, x.cfg.Origin)
	return link, nil
}

// weirdAnchor finds a new-tab link whose raw href is only a tracking
// fragment. The host fills in its real target on hover.
func weirdAnchor(ctx context.Context, root Element) (Element, error) {
	candidates, err := root.QuerySelectorAll(ctx, newTabAnchorSel)
	if err != nil {
		return nil, err
	}
	for _, a := range candidates {
		h, _, err := a.Attribute(ctx, "href")
		if err != nil {
			return nil, err
		}
		h = strings.TrimSpace(h)
		if strings.HasPrefix(h, "?__cft__") || strings.Contains(h, "#?igf") {
			return a, nil
		}
	}
	return nil, nil
}
