package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/leadscout/extractor"
)

// Element adapts a rod element to extractor.Element.
type Element struct {
	el *rod.Element
}

var _ extractor.Element = (*Element)(nil)

// Wrap returns el as an extractor.Element.
func Wrap(el *rod.Element) *Element { return &Element{el: el} }

func (e *Element) Closest(ctx context.Context, selector string) (extractor.Element, error) {
	el := e.el.Context(ctx)
	obj, err := el.Evaluate(rod.Eval(`(s) => this.closest(s)`, selector).ByObject())
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.ObjectID == "" {
		return nil, nil
	}
	found, err := el.Page().ElementFromObject(obj)
	if err != nil {
		return nil, err
	}
	return Wrap(found), nil
}

// QuerySelector uses Elements rather than Element: the latter retries
// until a match appears.
func (e *Element) QuerySelector(ctx context.Context, selector string) (extractor.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return Wrap(els[0]), nil
}

func (e *Element) QuerySelectorAll(ctx context.Context, selector string) ([]extractor.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]extractor.Element, 0, len(els))
	for _, el := range els {
		out = append(out, Wrap(el))
	}
	return out, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Href(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("href")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

// materializeJS hovers and focuses a link so the page swaps its placeholder
// href for the real post URL, then resolves with whatever href is best.
const materializeJS = `(timeoutMs) => new Promise((resolve) => {
	const a = this;
	const postShaped = (h) => !!h && (h.includes('/posts/') || h.includes('permalink.php') || h.includes('story_fbid='));
	const before = a.href || '';
	if (postShaped(before)) { resolve(before); return; }
	let got = '';
	let done = false;
	const finish = () => {
		if (done) return;
		done = true;
		obs.disconnect();
		const afterProp = a.href || '';
		const afterAttr = a.getAttribute('href') || '';
		resolve(afterProp || got || afterAttr || '');
	};
	const obs = new MutationObserver(() => {
		const h = a.href || '';
		if (h && h !== before) { got = h; finish(); }
	});
	obs.observe(a, { attributes: true, attributeFilter: ['href'] });
	setTimeout(finish, timeoutMs);
	try {
		a.scrollIntoView({ block: 'center', inline: 'nearest' });
		a.focus({ preventScroll: true });
		for (const type of ['mouseover', 'mouseenter', 'mousemove']) {
			a.dispatchEvent(new MouseEvent(type, { bubbles: true, cancelable: true, view: window }));
		}
		a.dispatchEvent(new PointerEvent('pointerover', { bubbles: true }));
		a.dispatchEvent(new FocusEvent('focusin', { bubbles: true }));
	} catch (e) {}
})`

func (e *Element) Materialize(ctx context.Context, timeout time.Duration) (string, error) {
	obj, err := e.el.Context(ctx).Evaluate(rod.Eval(materializeJS, timeout.Milliseconds()).ByPromise())
	if err != nil {
		return "", err
	}
	return obj.Value.Str(), nil
}
