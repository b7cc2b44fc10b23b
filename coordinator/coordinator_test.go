package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/leadscout/dbopen"
	"github.com/hazyhaar/leadscout/idgen"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
	"github.com/hazyhaar/leadscout/notify"
	"github.com/hazyhaar/leadscout/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeNav struct {
	mu      sync.Mutex
	open    map[string]bool
	visits  []string
	next    int
	failNav error
}

func (n *fakeNav) EnsureTab(_ context.Context, handle string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.open == nil {
		n.open = map[string]bool{}
	}
	if handle != "" && n.open[handle] {
		return handle, nil
	}
	n.next++
	h := "tab-" + strconv.Itoa(n.next)
	n.open[h] = true
	return h, nil
}

func (n *fakeNav) Navigate(_ context.Context, handle, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNav != nil {
		return n.failNav
	}
	n.visits = append(n.visits, handle+" "+url)
	return nil
}

func (n *fakeNav) close(handle string) {
	n.mu.Lock()
	delete(n.open, handle)
	n.mu.Unlock()
}

type fakeAuth struct {
	sess    *lead.Session
	ensured int
}

func (a *fakeAuth) Current(context.Context) (*lead.Session, error) { return a.sess, nil }
func (a *fakeAuth) EnsureValid(context.Context) (*lead.Session, error) {
	a.ensured++
	return a.sess, nil
}

type recorder struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (r *recorder) Name() string { return "recorder" }
func (r *recorder) Send(_ context.Context, ev *notify.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

type fixture struct {
	st    *store.Store
	c     *Coordinator
	clk   *clock
	nav   *fakeNav
	notes *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st, err := store.New(context.Background(), dbopen.OpenMemory(t), store.WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	nav := &fakeNav{}
	rec := &recorder{}
	c := New(st, Config{Now: clk.Now, IDs: idgen.Sequence("ld_")},
		WithNavigator(nav), WithNotifier(notify.NewManager(nil, rec)))
	return &fixture{st: st, c: c, clk: clk, nav: nav, notes: rec}
}

func TestEnableGroup_Capacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := range 5 {
		slug := fmt.Sprintf("g%d", i)
		g, err := f.c.EnableGroup(ctx, slug, "")
		if err != nil {
			t.Fatalf("enable %s: %v", slug, err)
		}
		if !g.Enabled || g.URL != "https://www.facebook.com/groups/"+slug+"/" {
			t.Errorf("group %s: got %+v", slug, g)
		}
	}

	// WHAT: the sixth distinct slug is refused.
	// WHY: at most five groups may be enabled at once.
	if _, err := f.c.EnableGroup(ctx, "g5", ""); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("sixth enable: got %v, want ErrLimitReached", err)
	}
	if g, _ := f.st.GetGroup(ctx, "g5"); g != nil {
		t.Errorf("refused group persisted: %+v", g)
	}

	// Re-enabling a group that is already on always works.
	if _, err := f.c.EnableGroup(ctx, "g2", "https://www.facebook.com/groups/g2/?ref=x"); err != nil {
		t.Errorf("re-enable at capacity: %v", err)
	}

	dec, err := f.c.CanInjectOrToggle(ctx, "g5")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed || dec.Existing != nil || dec.ActiveCount != 5 || dec.Limit != 5 {
		t.Errorf("unknown group at capacity: got %+v", dec)
	}
	dec, _ = f.c.CanInjectOrToggle(ctx, "g1")
	if !dec.Allowed || dec.Existing == nil {
		t.Errorf("known group at capacity: got %+v", dec)
	}

	// Disabling frees a slot.
	if _, err := f.c.DisableGroup(ctx, "g0"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.EnableGroup(ctx, "g5", ""); err != nil {
		t.Errorf("enable after disable: %v", err)
	}
}

func TestEnableGroup_ReenableKnownAtCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.c.EnableGroup(ctx, "a", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.DisableGroup(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if _, err := f.c.EnableGroup(ctx, fmt.Sprintf("g%d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	dec, err := f.c.CanInjectOrToggle(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed || dec.Existing == nil || dec.Existing.Enabled {
		t.Fatalf("known disabled group: got %+v", dec)
	}

	// WHAT: a known group toggles back on even with five active.
	// WHY: enabling an existing group is an idempotent update.
	g, err := f.c.EnableGroup(ctx, "a", "")
	if err != nil {
		t.Fatalf("re-enable known group at capacity: %v", err)
	}
	if !g.Enabled {
		t.Errorf("group: got %+v", g)
	}
	if _, err := f.c.EnableGroup(ctx, "new", ""); !errors.Is(err, ErrLimitReached) {
		t.Errorf("new group over capacity: got %v, want ErrLimitReached", err)
	}
}

func TestEnableGroup_ConcurrentNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.c.EnableGroup(ctx, fmt.Sprintf("c%d", i), "")
		}()
	}
	wg.Wait()

	n, err := f.st.CountEnabled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("enabled after race: got %d, want 5", n)
	}
}

func TestEnableDisable_PreservesAddedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g1, _ := f.c.EnableGroup(ctx, "foo", "https://www.facebook.com/groups/foo/")
	f.clk.Advance(time.Hour)
	g2, err := f.c.DisableGroup(ctx, "foo")
	if err != nil || g2 == nil {
		t.Fatalf("disable: %+v, %v", g2, err)
	}
	if g2.Enabled || g2.AddedAt != g1.AddedAt || g2.UpdatedAt <= g1.UpdatedAt {
		t.Errorf("disabled: got %+v (was %+v)", g2, g1)
	}
	if g, err := f.c.DisableGroup(ctx, "nope"); err != nil || g != nil {
		t.Errorf("disable unknown: got %+v, %v", g, err)
	}
	if len(f.notes.events) != 2 || f.notes.events[0].Body != "Grupo: foo" {
		t.Errorf("notifications: got %d events", len(f.notes.events))
	}
}

func TestRecordOpportunity_DedupesTrackingVariants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	op := message.Opportunity{
		Slug:        "foo",
		GroupURL:    "https://www.facebook.com/groups/foo/",
		ProfileName: "Designer",
		Post: lead.Post{
			Author:    "Maria",
			Text:      "Preciso de um designer para logo",
			Permalink: "https://www.facebook.com/groups/foo/posts/123/?__cft__[0]=AZX&__tn__=%2CO%2CP-R",
		},
	}
	deduped, err := f.c.RecordOpportunity(ctx, op)
	if err != nil || deduped {
		t.Fatalf("first: deduped=%v err=%v", deduped, err)
	}

	op.Post.Permalink = "/groups/foo/posts/123?ref=share#x"
	deduped, err = f.c.RecordOpportunity(ctx, op)
	if err != nil || !deduped {
		t.Fatalf("second: deduped=%v err=%v, want deduped", deduped, err)
	}

	leads, _ := f.c.ListLeads(ctx)
	if len(leads) != 1 {
		t.Fatalf("leads: got %d, want 1", len(leads))
	}
	l := leads[0]
	if l.DedupeKey != "u:https://www.facebook.com/groups/foo/posts/123/" {
		t.Errorf("key: got %q", l.DedupeKey)
	}
	if l.Status != lead.StatusNew || l.Origin != "facebook" || l.ID != "ld_1" || l.GroupSlug != "foo" {
		t.Errorf("lead: got %+v", l)
	}
	if len(f.notes.events) != 1 || f.notes.events[0].Kind != notify.KindLeadFound {
		t.Errorf("lead notification missing: %+v", f.notes.events)
	}
}

func TestRecordOpportunity_TextKeyAndDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	op := message.Opportunity{
		GroupURL: "https://www.facebook.com/groups/bar/",
		Post:     lead.Post{Text: "  Procuro PSICÓLOGO online  "},
	}
	if d, err := f.c.RecordOpportunity(ctx, op); err != nil || d {
		t.Fatalf("first: %v %v", d, err)
	}
	op.Post.Text = "Procuro PSICÓLOGO online"
	if d, _ := f.c.RecordOpportunity(ctx, op); !d {
		t.Error("same text not deduped")
	}

	l, err := f.st.GetLead(ctx, "t:procuro psicólogo online")
	if err != nil || l == nil {
		t.Fatalf("text lead: %+v, %v", l, err)
	}
	if l.Post.Author != "?" || l.ProfileName != "perfil" || l.GroupSlug != "bar" {
		t.Errorf("defaults: got %+v", l)
	}

	_, err = f.c.RecordOpportunity(ctx, message.Opportunity{Slug: "bar"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty payload: got %v", err)
	}
}

func TestAutorunTick_RoundRobin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, s := range []string{"a", "b", "c"} {
		if _, err := f.c.EnableGroup(ctx, s, ""); err != nil {
			t.Fatal(err)
		}
		f.clk.Advance(time.Second)
	}
	if _, err := f.c.AutorunStart(ctx, 0); err != nil {
		t.Fatal(err)
	}
	st, _ := f.st.Autorun(ctx)
	st.CursorIndex = 5
	f.st.PutAutorun(ctx, st)

	res, err := f.c.AutorunTick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// WHAT: cursor 5 over three groups picks the third.
	// WHY: selection is cursor mod enabledCount.
	if !res.Ran || res.Group.Slug != "c" {
		t.Fatalf("tick: got %+v, want group c", res)
	}
	if res.State.CursorIndex != 6 || res.State.LastRunAt != lead.Millis(f.clk.Now()) {
		t.Errorf("state: got %+v", res.State)
	}
	if len(f.nav.visits) != 1 || f.nav.visits[0] != "tab-1 https://www.facebook.com/groups/c/" {
		t.Errorf("visits: got %v", f.nav.visits)
	}

	// Interval not elapsed.
	res, _ = f.c.AutorunTick(ctx)
	if res.Ran {
		t.Error("tick ran before interval elapsed")
	}

	// The tab was closed: a new one is opened.
	f.nav.close("tab-1")
	f.clk.Advance(5 * time.Minute)
	res, err = f.c.AutorunTick(ctx)
	if err != nil || !res.Ran || res.Group.Slug != "a" || res.State.TabHandle != "tab-2" {
		t.Errorf("second tick: got %+v, %v", res, err)
	}
}

func TestAutorunTick_NoOps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Stopped.
	if res, err := f.c.AutorunTick(ctx); err != nil || res.Ran {
		t.Errorf("stopped: got %+v, %v", res, err)
	}
	// Running but nothing enabled.
	f.c.AutorunStart(ctx, 60_000)
	res, err := f.c.AutorunTick(ctx)
	if err != nil || res.Ran || res.State.LastRunAt != 0 {
		t.Errorf("no groups: got %+v, %v", res, err)
	}

	f.c.EnableGroup(ctx, "a", "")
	f.nav.failNav = errors.New("tab crashed")
	if _, err := f.c.AutorunTick(ctx); err == nil {
		t.Error("navigation failure not reported")
	}
	st, _ := f.st.Autorun(ctx)
	if st.CursorIndex != 0 || st.LastRunAt != 0 {
		t.Errorf("failed tick changed state: %+v", st)
	}
}

func TestAutorunStart_Interval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		in, want int64
	}{
		{0, 300_000},
		{1000, 60_000},
		{120_000, 120_000},
	}
	for _, tc := range cases {
		st, err := f.c.AutorunStart(ctx, tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if !st.Running || st.IntervalMs != tc.want {
			t.Errorf("start(%d): got %+v, want interval %d", tc.in, st, tc.want)
		}
	}
	st, _ := f.c.AutorunStop(ctx)
	if st.Running || st.IntervalMs != 120_000 {
		t.Errorf("stop: got %+v", st)
	}
	st, _ = f.c.AutorunReset(ctx)
	if st.Running || st.IntervalMs != 120_000 || st.CursorIndex != 0 {
		t.Errorf("reset: got %+v", st)
	}
}

func TestAutorunReset_KeepsRunState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	before := lead.AutorunState{Running: true, TabHandle: "tab-1", CursorIndex: 2, IntervalMs: 600_000, LastRunAt: 1234}
	if err := f.st.PutAutorun(ctx, before); err != nil {
		t.Fatal(err)
	}
	st, err := f.c.AutorunReset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// WHAT: only the rotation position is rewound.
	want := lead.AutorunState{Running: true, TabHandle: "tab-1", IntervalMs: 600_000}
	if st != want {
		t.Errorf("reset: got %+v, want %+v", st, want)
	}
	stored, _ := f.c.AutorunStatus(ctx)
	if stored != want {
		t.Errorf("stored: got %+v, want %+v", stored, want)
	}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.c.UpsertProfile(ctx, lead.Profile{ID: "dev", Include: []string{"Go", " go ", "", "rust"}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "dev" || len(p.Include) != 2 || p.Include[0] != "Go" {
		t.Errorf("upsert: got %+v", p)
	}
	if _, err := f.c.SetActiveProfile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("set missing: got %v", err)
	}
	if st, err := f.c.SetActiveProfile(ctx, "dev"); err != nil || st.ActiveProfileID != "dev" {
		t.Fatalf("set dev: %+v, %v", st, err)
	}
	if ok, err := f.c.RemoveProfile(ctx, "dev"); err != nil || !ok {
		t.Fatalf("remove dev: %v, %v", ok, err)
	}
	st, _ := f.c.Settings(ctx)
	if st.ActiveProfileID != lead.DefaultProfileID {
		t.Errorf("active after remove: got %q", st.ActiveProfileID)
	}
	if _, err := f.c.RemoveProfile(ctx, lead.DefaultProfileID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("remove default: got %v", err)
	}
}

func TestPatchLead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.c.RecordOpportunity(ctx, message.Opportunity{Post: lead.Post{Text: "logo"}})
	contacted := lead.StatusContacted
	note := "ligar amanhã"
	l, err := f.c.PatchLead(ctx, "t:logo", lead.LeadPatch{Status: &contacted, Note: &note})
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != contacted || l.Note != note {
		t.Errorf("patched: got %+v", l)
	}
	bogus := lead.Status("won")
	if _, err := f.c.PatchLead(ctx, "t:logo", lead.LeadPatch{Status: &bogus}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status: got %v", err)
	}
	if _, err := f.c.PatchLead(ctx, "t:none", lead.LeadPatch{Note: &note}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing lead: got %v", err)
	}
	if n, _ := f.c.ClearLeads(ctx); n != 1 {
		t.Errorf("clear: got %d", n)
	}
}

func TestDispatcher_AuthGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth := &fakeAuth{}
	d := NewDispatcher(f.c, auth)

	resp := d.Handle(ctx, message.GroupEnable{Slug: "foo"})
	if resp.OK || resp.Code != message.CodeNotAuthenticated {
		t.Errorf("unauthenticated enable: got %+v", resp)
	}
	resp = d.Handle(ctx, message.AuthStatus{})
	if !resp.OK || resp.Session != nil {
		t.Errorf("auth status: got %+v", resp)
	}
	// WHAT: opportunities are accepted without a session.
	resp = d.Handle(ctx, message.OpportunityFound{Payload: message.Opportunity{Post: lead.Post{Text: "x"}}})
	if !resp.OK {
		t.Errorf("opportunity without session: got %+v", resp)
	}

	auth.sess = &lead.Session{User: lead.User{ID: "u1"}}
	resp = d.Handle(ctx, message.GroupEnable{Slug: "foo"})
	if !resp.OK || resp.Group == nil || !resp.Group.Enabled {
		t.Errorf("authenticated enable: got %+v", resp)
	}
	resp = d.Handle(ctx, message.GroupEnable{})
	if resp.Code != message.CodeInvalidRequest {
		t.Errorf("empty slug: got %+v", resp)
	}
}

func TestDispatcher_AuthStatusReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth := &fakeAuth{sess: &lead.Session{User: lead.User{ID: "u1"}, ExpiresAt: 1}}
	d := NewDispatcher(f.c, auth)

	resp := d.Handle(ctx, message.AuthStatus{})
	if !resp.OK || resp.Session == nil || resp.Session.User.ID != "u1" {
		t.Fatalf("auth status: got %+v", resp)
	}
	if auth.ensured != 0 {
		t.Errorf("auth status validated the session %d times, want 0", auth.ensured)
	}

	d.Handle(ctx, message.GroupEnable{Slug: "foo"})
	if auth.ensured != 1 {
		t.Errorf("gated request: got %d validations, want 1", auth.ensured)
	}
}

func TestDispatcher_LimitReached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := NewDispatcher(f.c, nil)

	for i := range 5 {
		if resp := d.Handle(ctx, message.GroupEnable{Slug: fmt.Sprintf("g%d", i)}); !resp.OK {
			t.Fatalf("enable %d: %+v", i, resp)
		}
	}
	resp := d.Handle(ctx, message.GroupEnable{Slug: "g5"})
	if resp.OK || resp.Code != message.CodeLimitReached {
		t.Errorf("over capacity: got %+v", resp)
	}
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := NewDispatcher(f.c, &fakeAuth{sess: &lead.Session{User: lead.User{ID: "u"}}})
	send := message.Local(d)

	call := func(req message.Request) message.Response {
		t.Helper()
		return message.Call(ctx, send, req, time.Second)
	}

	resp := call(message.GroupCanInject{Slug: "foo"})
	if !resp.OK || !resp.Allowed || resp.Existing != nil {
		t.Fatalf("can inject: got %+v", resp)
	}
	resp = call(message.GroupEnable{Slug: "foo", URL: "https://www.facebook.com/groups/foo/"})
	if !resp.OK || !resp.Group.Enabled {
		t.Fatalf("enable: got %+v", resp)
	}

	for _, link := range []string{
		"https://www.facebook.com/groups/foo/posts/1/?__cft__[0]=A",
		"https://www.facebook.com/groups/foo/posts/1/",
		"https://www.facebook.com/groups/foo/posts/2/",
		"https://www.facebook.com/groups/foo/posts/2/?fbclid=z",
	} {
		resp = call(message.OpportunityFound{Payload: message.Opportunity{
			Slug: "foo", GroupURL: "https://www.facebook.com/groups/foo/",
			Post: lead.Post{Text: "designer", Permalink: link},
		}})
		if !resp.OK {
			t.Fatalf("opportunity %s: %+v", link, resp)
		}
	}
	resp = call(message.LeadsList{})
	if len(resp.Leads) != 2 {
		t.Errorf("leads: got %d, want 2", len(resp.Leads))
	}
}

func TestHeartbeat_BeatRequiresSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth := &fakeAuth{}
	hb := NewHeartbeat(f.c, auth, "")

	f.c.EnableGroup(ctx, "a", "")
	f.c.AutorunStart(ctx, 0)

	if res, err := hb.Beat(ctx); err != nil || res.Ran {
		t.Errorf("beat without session: got %+v, %v", res, err)
	}
	auth.sess = &lead.Session{User: lead.User{ID: "u"}}
	if res, err := hb.Beat(ctx); err != nil || !res.Ran {
		t.Errorf("beat with session: got %+v, %v", res, err)
	}
}

func TestHeartbeat_StartStop(t *testing.T) {
	f := newFixture(t)
	hb := NewHeartbeat(f.c, nil, "@every 1h")
	if err := hb.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := hb.Start(context.Background()); err == nil {
		t.Error("second start accepted")
	}
	hb.Stop()
	hb.Stop()

	bad := NewHeartbeat(f.c, nil, "not a schedule")
	if err := bad.Start(context.Background()); err == nil {
		t.Error("bad spec accepted")
	}
}
