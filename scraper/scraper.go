// Package scraper runs one monitoring pass over a group page: check the
// group is enabled, resolve the active keyword profile, wait for the feed,
// then scan a few rounds of posts and report every new match to the
// coordinator.
//
// A Scraper never touches storage. Everything it needs goes through a
// message.Sender with a per-call timeout.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/leadscout/classify"
	"github.com/hazyhaar/leadscout/extractor"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
	"github.com/hazyhaar/leadscout/pace"
	"github.com/hazyhaar/leadscout/permalink"
)

// ErrNotGroupPage is returned when no group slug can be derived.
var ErrNotGroupPage = errors.New("scraper: not a group page")

// Page is the live feed being scanned.
type Page interface {
	// Posts returns the post containers currently rendered.
	Posts(ctx context.Context) ([]extractor.Element, error)
	// ScrollBy scrolls the feed down by px pixels.
	ScrollBy(ctx context.Context, px int) error
}

// State is a step of a run.
type State string

const (
	StateGating           State = "gating"
	StateResolvingProfile State = "resolving_profile"
	StateWaitingForFeed   State = "waiting_for_feed"
	StateScanning         State = "scanning"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Config tunes a Scraper.
type Config struct {
	// GroupURL is the page being scanned. Required.
	GroupURL string
	// Slug defaults to the slug parsed from GroupURL.
	Slug string
	// Origin resolves relative links. Default: permalink.DefaultOrigin.
	Origin string

	SendTimeout   time.Duration // default 8s
	MaxRounds     int           // default 3
	PostsPerRound int           // default 40
	MinPosts      int           // default 3
	FeedWait      time.Duration // default 25s
	FeedRetryWait time.Duration // default 20s

	// MaterializeTimeout bounds the wait for late permalinks. Default: 1.5s.
	MaterializeTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Origin == "" {
		c.Origin = permalink.DefaultOrigin
	}
	if c.Slug == "" {
		c.Slug, _ = permalink.GroupSlug(c.GroupURL)
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 8 * time.Second
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.PostsPerRound <= 0 {
		c.PostsPerRound = 40
	}
	if c.MinPosts <= 0 {
		c.MinPosts = 3
	}
	if c.FeedWait <= 0 {
		c.FeedWait = 25 * time.Second
	}
	if c.FeedRetryWait <= 0 {
		c.FeedRetryWait = 20 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result summarises a finished run.
type Result struct {
	State     State  // StateDone or StateAborted
	AbortedAt State  // step that aborted the run, if any
	Reason    string // why the run aborted
	Profile   string
	Rounds    int
	Scanned   int
	Matches   int
	Reported  int
}

// Scraper scans one group page.
type Scraper struct {
	cfg    Config
	page   Page
	send   message.Sender
	pace   *pace.Pacer
	ext    *extractor.Extractor
	logger *slog.Logger
}

// New returns a Scraper reading page and reporting through send. A nil
// pacer sleeps for real.
func New(cfg Config, page Page, send message.Sender, p *pace.Pacer) *Scraper {
	cfg.defaults()
	if p == nil {
		p = pace.New()
	}
	logger := cfg.Logger.With("group", cfg.Slug)
	ext := extractor.New(extractor.Config{
		Origin:             cfg.Origin,
		GroupURL:           cfg.GroupURL,
		MaterializeTimeout: cfg.MaterializeTimeout,
		Logger:             logger,
	}, p)
	return &Scraper{cfg: cfg, page: page, send: send, pace: p, ext: ext, logger: logger}
}

// Run performs one pass. Aborts (disabled group, no profile, empty feed)
// are reported in Result with a nil error; the error is set only when the
// page or ctx fail.
func (s *Scraper) Run(ctx context.Context) (Result, error) {
	if s.cfg.Slug == "" {
		return Result{State: StateAborted, AbortedAt: StateGating, Reason: "no group slug"}, ErrNotGroupPage
	}

	if ok, reason := s.gate(ctx); !ok {
		s.logger.Info("scraper: gate closed", "reason", reason)
		return abort(StateGating, reason), nil
	}

	profile, reason := s.activeProfile(ctx)
	if profile == nil {
		s.logger.Info("scraper: no active profile", "reason", reason)
		return abort(StateResolvingProfile, reason), nil
	}
	s.logger.Info("scraper: active profile", "profile", profile.Name)

	if err := s.pace.Sleep(ctx, 4*time.Second, 11*time.Second); err != nil {
		return Result{}, err
	}
	if err := s.gentleScroll(ctx, 2); err != nil {
		return Result{}, err
	}

	n, err := s.waitForFeed(ctx, s.cfg.FeedWait)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		s.logger.Info("scraper: feed empty, scrolling and retrying")
		if err := s.gentleScroll(ctx, 2); err != nil {
			return Result{}, err
		}
		if n, err = s.waitForFeed(ctx, s.cfg.FeedRetryWait); err != nil {
			return Result{}, err
		}
		if n == 0 {
			s.logger.Info("scraper: feed still empty, aborting")
			r := abort(StateWaitingForFeed, "feed empty")
			r.Profile = profile.Name
			return r, nil
		}
	}

	res := Result{Profile: profile.Name}
	seen := make(map[string]struct{})
	for round := 1; round <= s.cfg.MaxRounds; round++ {
		res.Rounds = round
		matches, err := s.scan(ctx, *profile, seen, &res)
		if err != nil {
			return res, err
		}
		s.logger.Debug("scraper: round done", "round", round, "matches", matches)

		if matches > 0 {
			if err := s.gentleScroll(ctx, 2); err != nil {
				return res, err
			}
			if err := s.pace.Sleep(ctx, 1200*time.Millisecond, 2400*time.Millisecond); err != nil {
				return res, err
			}
			continue
		}
		if round < s.cfg.MaxRounds {
			if err := s.gentleScroll(ctx, 1); err != nil {
				return res, err
			}
			if err := s.pace.Sleep(ctx, 900*time.Millisecond, 1800*time.Millisecond); err != nil {
				return res, err
			}
		}
	}

	s.logger.Info("scraper: finished", "rounds", res.Rounds, "scanned", res.Scanned, "matches", res.Matches, "reported", res.Reported)
	if err := s.pace.Sleep(ctx, 2*time.Second, 6*time.Second); err != nil {
		return res, err
	}
	res.State = StateDone
	return res, nil
}

func abort(at State, reason string) Result {
	return Result{State: StateAborted, AbortedAt: at, Reason: reason}
}

// gate asks the coordinator whether this group is enabled.
func (s *Scraper) gate(ctx context.Context) (bool, string) {
	resp := message.Call(ctx, s.send, message.GroupCanInject{Slug: s.cfg.Slug}, s.cfg.SendTimeout)
	if !resp.OK {
		return false, string(resp.Code)
	}
	if resp.Existing == nil || !resp.Existing.Enabled {
		return false, "disabled/not_saved"
	}
	return true, ""
}

// activeProfile resolves the active profile through the coordinator.
func (s *Scraper) activeProfile(ctx context.Context) (*lead.Profile, string) {
	resp := message.Call(ctx, s.send, message.SettingsGet{}, s.cfg.SendTimeout)
	if !resp.OK {
		return nil, string(resp.Code)
	}
	id := lead.DefaultProfileID
	if resp.Settings != nil && resp.Settings.ActiveProfileID != "" {
		id = resp.Settings.ActiveProfileID
	}
	resp = message.Call(ctx, s.send, message.ProfilesGet{ID: id}, s.cfg.SendTimeout)
	if !resp.OK {
		return nil, string(resp.Code)
	}
	if resp.Profile == nil {
		return nil, "profile not found: " + id
	}
	return resp.Profile, ""
}

// waitForFeed polls until at least MinPosts containers are rendered or
// maxWait elapses. It returns 0 on timeout.
func (s *Scraper) waitForFeed(ctx context.Context, maxWait time.Duration) (int, error) {
	start := s.pace.Now()
	for s.pace.Now().Sub(start) < maxWait {
		posts, err := s.page.Posts(ctx)
		if err != nil {
			return 0, fmt.Errorf("scraper: list posts: %w", err)
		}
		if len(posts) >= s.cfg.MinPosts {
			return len(posts), nil
		}
		if err := s.pace.Sleep(ctx, 900*time.Millisecond, 2600*time.Millisecond); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// gentleScroll scrolls steps times by 450 to 850px, pausing 1.2 to 3s
// after each step.
func (s *Scraper) gentleScroll(ctx context.Context, steps int) error {
	for range steps {
		if err := s.page.ScrollBy(ctx, s.pace.IntBetween(450, 850)); err != nil {
			return fmt.Errorf("scraper: scroll: %w", err)
		}
		if err := s.pace.Sleep(ctx, 1200*time.Millisecond, 3*time.Second); err != nil {
			return err
		}
	}
	return nil
}

// scan processes the visible posts once and returns the number of new
// matches. A post whose extraction fails is skipped.
func (s *Scraper) scan(ctx context.Context, profile lead.Profile, seen map[string]struct{}, res *Result) (int, error) {
	posts, err := s.page.Posts(ctx)
	if err != nil {
		return 0, fmt.Errorf("scraper: list posts: %w", err)
	}
	if len(posts) > s.cfg.PostsPerRound {
		posts = posts[:s.cfg.PostsPerRound]
	}
	s.logger.Debug("scraper: visible posts", "count", len(posts))

	matches := 0
	for _, el := range posts {
		post, err := s.ext.Extract(ctx, el)
		if err != nil {
			if ctx.Err() != nil {
				return matches, ctx.Err()
			}
			s.logger.Warn("scraper: extract failed", "error", err)
			continue
		}
		res.Scanned++
		if post.Text == "" || !classify.Matches(post.Text, profile) {
			continue
		}
		key := post.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		matches++
		res.Matches++

		s.logger.Info("scraper: match", "author", post.Author.Name, "permalink", post.Permalink)
		if s.report(ctx, profile, post) {
			res.Reported++
		}
	}
	return matches, nil
}

func (s *Scraper) report(ctx context.Context, profile lead.Profile, post lead.ExtractedPost) bool {
	req := message.OpportunityFound{Payload: message.Opportunity{
		Slug:        s.cfg.Slug,
		GroupURL:    post.GroupURL,
		ProfileName: profile.Name,
		Post: lead.Post{
			Author:    post.Author.Name,
			AuthorURL: post.Author.ProfileURL,
			Text:      post.Text,
			Permalink: post.Permalink,
			Timestamp: post.ExtractedAt,
		},
	}}
	resp := message.Call(ctx, s.send, req, s.cfg.SendTimeout)
	if !resp.OK {
		s.logger.Warn("scraper: report failed", "code", resp.Code, "error", resp.Error)
		return false
	}
	return true
}
