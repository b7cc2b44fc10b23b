package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/leadscout/widget"
)

const (
	cardID      = "ext-fb-notifs-widget"
	bindingName = "__leadscoutEvent"
)

// hooksJS reports route changes and DOM churn to the binding. It runs on
// every new document and once on attach.
const hooksJS = `(() => {
	if (window.__leadscoutHooks) return;
	window.__leadscoutHooks = true;
	const emit = (kind) => { try { window.` + bindingName + `(kind); } catch (e) {} };
	for (const name of ['pushState', 'replaceState']) {
		const orig = history[name];
		history[name] = function () { const r = orig.apply(this, arguments); emit('navigate'); return r; };
	}
	window.addEventListener('popstate', () => emit('navigate'));
	const start = () => new MutationObserver(() => emit('mutate')).observe(document.documentElement, { childList: true, subtree: true });
	if (document.documentElement) start(); else document.addEventListener('DOMContentLoaded', start);
})()`

const renderJS = `(v) => {
	let card = document.getElementById('` + cardID + `');
	if (!card) {
		card = document.createElement('div');
		card.id = '` + cardID + `';
		card.style.cssText = 'position:fixed;right:16px;bottom:16px;z-index:2147483647;background:#fff;color:#1c1e21;border:1px solid #ccd0d5;border-radius:8px;padding:12px;font:13px system-ui,sans-serif;box-shadow:0 2px 12px rgba(0,0,0,.15);min-width:220px';
		const head = document.createElement('div');
		head.style.cssText = 'display:flex;justify-content:space-between;align-items:center;margin-bottom:8px;font-weight:600';
		const title = document.createElement('span');
		title.dataset.role = 'title';
		const close = document.createElement('button');
		close.textContent = '×';
		close.style.cssText = 'border:none;background:none;font-size:16px;cursor:pointer';
		close.addEventListener('click', () => window.` + bindingName + `('close'));
		head.append(title, close);
		const slug = document.createElement('div');
		slug.dataset.role = 'slug';
		slug.style.cssText = 'margin-bottom:8px;opacity:.75';
		const btn = document.createElement('button');
		btn.dataset.role = 'toggle';
		btn.style.cssText = 'padding:4px 12px;cursor:pointer';
		btn.addEventListener('click', () => window.` + bindingName + `('toggle'));
		const msg = document.createElement('div');
		msg.dataset.role = 'message';
		msg.style.cssText = 'margin-top:6px;font-size:12px';
		card.append(head, slug, btn, msg);
		document.body.appendChild(card);
	}
	card.querySelector('[data-role=title]').textContent = v.title;
	card.querySelector('[data-role=slug]').textContent = v.slug;
	const btn = card.querySelector('[data-role=toggle]');
	btn.textContent = v.label;
	btn.disabled = v.busy;
	card.querySelector('[data-role=message]').textContent = v.message;
}`

// Surface renders the group card inside a rod tab and relays its clicks and
// the page's navigation and mutation signals as widget events.
type Surface struct {
	page   *rod.Page
	events chan widget.EventKind

	stopOnce sync.Once
	stops    []func() error
}

var _ widget.Interactive = (*Surface)(nil)

// NewSurface installs the event binding and page hooks on page.
func NewSurface(ctx context.Context, page *rod.Page) (*Surface, error) {
	s := &Surface{page: page, events: make(chan widget.EventKind, 32)}

	stopBinding, err := page.Context(ctx).Expose(bindingName, func(arg gson.JSON) (any, error) {
		switch arg.Str() {
		case "toggle":
			s.push(widget.EventToggle)
		case "close":
			s.push(widget.EventClose)
		case "navigate":
			s.push(widget.EventNavigate)
		case "mutate":
			s.push(widget.EventMutate)
		}
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("browser: expose binding: %w", err)
	}
	s.stops = append(s.stops, stopBinding)

	removeHooks, err := page.Context(ctx).EvalOnNewDocument(hooksJS)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: install hooks: %w", err)
	}
	s.stops = append(s.stops, removeHooks)

	if _, err := page.Context(ctx).Eval(`() => ` + hooksJS); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: run hooks: %w", err)
	}
	return s, nil
}

// push drops the event when the consumer is behind. Mutate and navigate
// are level signals and the next poll catches up.
func (s *Surface) push(k widget.EventKind) {
	select {
	case s.events <- k:
	default:
	}
}

func (s *Surface) Events() <-chan widget.EventKind { return s.events }

func (s *Surface) URL(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *Surface) Present(ctx context.Context) (bool, error) {
	res, err := s.page.Context(ctx).Eval(`(id) => !!document.getElementById(id)`, cardID)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

type renderArgs struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Label   string `json:"label"`
	Busy    bool   `json:"busy"`
	Message string `json:"message"`
}

func (s *Surface) Render(ctx context.Context, v widget.View) error {
	args := renderArgs{
		Title:   widget.Title,
		Slug:    v.Slug,
		Label:   v.Label(),
		Busy:    v.Busy,
		Message: v.Message,
	}
	_, err := s.page.Context(ctx).Eval(renderJS, args)
	return err
}

func (s *Surface) Remove(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`(id) => { const el = document.getElementById(id); if (el) el.remove(); }`, cardID)
	return err
}

// Close removes the binding and hooks. The events channel stays open so a
// late binding call cannot panic.
func (s *Surface) Close() error {
	var first error
	s.stopOnce.Do(func() {
		for _, stop := range s.stops {
			if err := stop(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}
