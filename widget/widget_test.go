package widget

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/leadscout/coordinator"
	"github.com/hazyhaar/leadscout/dbopen"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
	"github.com/hazyhaar/leadscout/store"
)

type fakeSurface struct {
	mu      sync.Mutex
	url     string
	present bool
	views   []View
	removed int
	events  chan EventKind
}

func newSurface(url string) *fakeSurface {
	return &fakeSurface{url: url, events: make(chan EventKind, 8)}
}

func (s *fakeSurface) URL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *fakeSurface) Present(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present, nil
}

func (s *fakeSurface) Render(_ context.Context, v View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = true
	s.views = append(s.views, v)
	return nil
}

func (s *fakeSurface) Remove(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = false
	s.removed++
	return nil
}

func (s *fakeSurface) Events() <-chan EventKind { return s.events }

func (s *fakeSurface) navigate(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// rerender simulates the host page dropping the card.
func (s *fakeSurface) rerender() {
	s.mu.Lock()
	s.present = false
	s.mu.Unlock()
}

func (s *fakeSurface) shown() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present || len(s.views) == 0 {
		return View{}, false
	}
	return s.views[len(s.views)-1], true
}

func newCoordinator(t *testing.T) (*coordinator.Coordinator, message.Sender) {
	t.Helper()
	st, err := store.New(context.Background(), dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	c := coordinator.New(st, coordinator.Config{})
	return c, message.Local(coordinator.NewDispatcher(c, nil))
}

func groupURL(slug string) string { return "https://www.facebook.com/groups/" + slug + "/" }

func TestController_EnableFlow(t *testing.T) {
	ctx := context.Background()
	c, send := newCoordinator(t)
	s := newSurface(groupURL("foo") + "?sorting_setting=CHRONOLOGICAL")
	ctrl := NewController(s, send, Config{})

	if err := ctrl.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	v, ok := s.shown()
	if !ok || v.Slug != "foo" || v.Enabled || v.Label() != LabelEnable {
		t.Fatalf("mounted view: got %+v (shown=%v)", v, ok)
	}

	if err := ctrl.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	v, _ = s.shown()
	if !v.Enabled || v.Busy || v.Message != MsgEnabled || v.Label() != LabelDisable {
		t.Errorf("after enable: got %+v", v)
	}
	groups, _ := c.ListGroups(ctx)
	if len(groups) != 1 || !groups[0].Enabled || groups[0].URL != groupURL("foo") {
		t.Errorf("persisted groups: got %+v", groups)
	}

	for range 2 {
		resp := message.Call(ctx, send, message.OpportunityFound{Payload: message.Opportunity{
			Slug: "foo", GroupURL: groupURL("foo"),
			Post: lead.Post{Text: "logo", Permalink: groupURL("foo") + "posts/9/?__cft__[0]=Z"},
		}}, time.Second)
		if !resp.OK {
			t.Fatalf("opportunity: %+v", resp)
		}
	}
	leads, _ := c.ListLeads(ctx)
	if len(leads) != 1 {
		t.Errorf("leads: got %d, want 1", len(leads))
	}

	if err := ctrl.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	v, _ = s.shown()
	if v.Enabled || v.Message != MsgDisabled {
		t.Errorf("after disable: got %+v", v)
	}
}

func TestController_CapacityGate(t *testing.T) {
	ctx := context.Background()
	c, send := newCoordinator(t)
	for i := range 5 {
		if _, err := c.EnableGroup(ctx, fmt.Sprintf("g%d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	s := newSurface(groupURL("new"))
	ctrl := NewController(s, send, Config{})
	ctrl.Tick(ctx)
	if _, ok := s.shown(); ok {
		t.Error("card shown for unknown group at capacity")
	}

	// Known groups are always toggleable.
	s.navigate(groupURL("g3"))
	ctrl.Tick(ctx)
	if v, ok := s.shown(); !ok || !v.Enabled {
		t.Errorf("known group: got %+v (shown=%v)", v, ok)
	}
}

func TestController_ToggleKnownGroupAtCapacity(t *testing.T) {
	ctx := context.Background()
	c, send := newCoordinator(t)
	if _, err := c.EnableGroup(ctx, "old", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.DisableGroup(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if _, err := c.EnableGroup(ctx, fmt.Sprintf("g%d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	s := newSurface(groupURL("old"))
	ctrl := NewController(s, send, Config{})
	ctrl.Tick(ctx)
	if v, ok := s.shown(); !ok || v.Enabled {
		t.Fatalf("known disabled group: got %+v (shown=%v)", v, ok)
	}
	if err := ctrl.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.shown(); !ok || !v.Enabled || v.Message != MsgEnabled {
		t.Errorf("after toggle: got %+v (shown=%v)", v, ok)
	}
}

func TestController_ToggleRevalidatesAtCapacity(t *testing.T) {
	ctx := context.Background()
	c, send := newCoordinator(t)
	s := newSurface(groupURL("late"))
	ctrl := NewController(s, send, Config{})
	ctrl.Tick(ctx)
	if _, ok := s.shown(); !ok {
		t.Fatal("card not shown under capacity")
	}

	// Capacity fills up while the card is on screen.
	for i := range 5 {
		c.EnableGroup(ctx, fmt.Sprintf("g%d", i), "")
	}
	if err := ctrl.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	// WHAT: the card disappears instead of showing a stale state.
	if _, ok := s.shown(); ok {
		t.Error("card still shown after limit reached")
	}
	if g, _ := c.ListGroups(ctx); len(g) != 5 {
		t.Errorf("groups: got %d, want 5", len(g))
	}
}

func TestController_CloseSuppressesUntilGroupChanges(t *testing.T) {
	ctx := context.Background()
	_, send := newCoordinator(t)
	s := newSurface(groupURL("foo"))
	ctrl := NewController(s, send, Config{})

	ctrl.Tick(ctx)
	if err := ctrl.Close(ctx); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		ctrl.Tick(ctx)
	}
	if _, ok := s.shown(); ok {
		t.Fatal("closed card remounted on the same group")
	}
	if st := ctrl.Status(); !st.Hidden || st.Mounted {
		t.Errorf("status: got %+v", st)
	}

	s.navigate(groupURL("bar"))
	ctrl.Tick(ctx)
	if v, ok := s.shown(); !ok || v.Slug != "bar" {
		t.Errorf("other group: got %+v (shown=%v)", v, ok)
	}
	s.navigate(groupURL("foo"))
	ctrl.Tick(ctx)
	if v, ok := s.shown(); !ok || v.Slug != "foo" {
		t.Errorf("back to closed group: got %+v (shown=%v)", v, ok)
	}
}

func TestController_RemountAfterRerenderAndUnmountOffGroup(t *testing.T) {
	ctx := context.Background()
	_, send := newCoordinator(t)
	s := newSurface(groupURL("foo"))
	ctrl := NewController(s, send, Config{})

	ctrl.Tick(ctx)
	s.rerender()
	ctrl.Tick(ctx)
	if _, ok := s.shown(); !ok {
		t.Error("card not remounted after host re-render")
	}

	s.navigate("https://www.facebook.com/marketplace/")
	ctrl.Tick(ctx)
	if _, ok := s.shown(); ok {
		t.Error("card shown off group pages")
	}
	if st := ctrl.Status(); st.Slug != "" || st.Mounted {
		t.Errorf("status: got %+v", st)
	}
}

func TestController_SaveFailureKeepsCard(t *testing.T) {
	ctx := context.Background()
	send := message.SenderFunc(func(_ context.Context, req message.Request) (message.Response, error) {
		if _, ok := req.(message.GroupCanInject); ok {
			return message.Response{OK: true, Allowed: true, Limit: 5}, nil
		}
		return message.Fail(message.CodeError, "disk full"), nil
	})
	s := newSurface(groupURL("foo"))
	ctrl := NewController(s, send, Config{})
	ctrl.Tick(ctx)
	ctrl.Toggle(ctx)

	v, ok := s.shown()
	if !ok || v.Message != MsgSaveFailed || v.Busy || v.Enabled {
		t.Errorf("after failed save: got %+v (shown=%v)", v, ok)
	}
}

func TestController_NotAuthenticatedHides(t *testing.T) {
	ctx := context.Background()
	send := message.SenderFunc(func(context.Context, message.Request) (message.Response, error) {
		return message.Fail(message.CodeNotAuthenticated, ""), nil
	})
	s := newSurface(groupURL("foo"))
	ctrl := NewController(s, send, Config{})
	ctrl.Tick(ctx)
	if _, ok := s.shown(); ok {
		t.Error("card shown without a session")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcher_DebounceAndNavigate(t *testing.T) {
	var calls atomic.Int32
	w := NewWatcher(WatchConfig{Debounce: 30 * time.Millisecond, Poll: time.Hour}, func(context.Context) {
		calls.Add(1)
	})
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, "initial call", func() bool { return calls.Load() == 1 })

	for range 10 {
		w.Mutated()
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, "debounced call", func() bool { return calls.Load() == 2 })
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 2 {
		t.Errorf("mutation burst: got %d calls, want 2", n)
	}

	w.Navigated()
	waitFor(t, "navigation call", func() bool { return calls.Load() == 3 })
}

func TestWatcher_PollAndStop(t *testing.T) {
	var calls atomic.Int32
	w := NewWatcher(WatchConfig{Poll: 10 * time.Millisecond}, func(context.Context) {
		calls.Add(1)
	})
	w.Start(context.Background())
	waitFor(t, "poll calls", func() bool { return calls.Load() >= 3 })
	w.Stop()
	w.Stop()

	n := calls.Load()
	time.Sleep(40 * time.Millisecond)
	if calls.Load() != n {
		t.Error("callback ran after Stop")
	}
}

func TestAttach_Events(t *testing.T) {
	ctx := context.Background()
	c, send := newCoordinator(t)
	s := newSurface(groupURL("foo"))

	a := Attach(ctx, s, send, Options{Watch: WatchConfig{Poll: 20 * time.Millisecond}})
	defer a.Detach()

	waitFor(t, "mount", func() bool { _, ok := s.shown(); return ok })
	s.events <- EventToggle
	waitFor(t, "enable", func() bool {
		g, _ := c.ListGroups(ctx)
		return len(g) == 1 && g[0].Enabled
	})

	s.events <- EventClose
	waitFor(t, "close", func() bool { return a.Controller.Status().Hidden })
	time.Sleep(60 * time.Millisecond)
	if _, ok := s.shown(); ok {
		t.Error("polling remounted a closed card")
	}

	s.navigate(groupURL("bar"))
	s.events <- EventNavigate
	waitFor(t, "remount on bar", func() bool { v, ok := s.shown(); return ok && v.Slug == "bar" })
}
