// Package htmldom implements extractor.Element over static HTML with
// goquery. It backs fixture-driven tests and offline replays of saved
// pages.
package htmldom

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/leadscout/extractor"
)

// AttentionFunc emulates the host page reacting to hover or focus on a
// link. It may rewrite the link's href through Element.SetAttribute.
type AttentionFunc func(el *Element)

// Document is a parsed HTML page.
type Document struct {
	doc  *goquery.Document
	base *url.URL

	mu        sync.Mutex
	attention AttentionFunc
}

// Parse reads HTML from r. pageURL resolves relative hrefs.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("htmldom: page url: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	return &Document{doc: doc, base: base}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(src, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(src), pageURL)
}

// OnAttention installs the hook run by Materialize.
func (d *Document) OnAttention(fn AttentionFunc) {
	d.mu.Lock()
	d.attention = fn
	d.mu.Unlock()
}

// Find returns every element of the document matching selector.
func (d *Document) Find(selector string) []extractor.Element {
	return d.wrapAll(d.doc.Find(selector))
}

// URL returns the page URL.
func (d *Document) URL() string { return d.base.String() }

func (d *Document) wrap(sel *goquery.Selection) extractor.Element {
	if sel.Length() == 0 {
		return nil
	}
	return &Element{sel: sel.First(), doc: d}
}

func (d *Document) wrapAll(sel *goquery.Selection) []extractor.Element {
	out := make([]extractor.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, doc: d})
	})
	return out
}

// Element is one node of a Document.
type Element struct {
	sel *goquery.Selection
	doc *Document
}

var _ extractor.Element = (*Element)(nil)

func (e *Element) Closest(_ context.Context, selector string) (extractor.Element, error) {
	return e.doc.wrap(e.sel.Closest(selector)), nil
}

func (e *Element) QuerySelector(_ context.Context, selector string) (extractor.Element, error) {
	return e.doc.wrap(e.sel.Find(selector)), nil
}

func (e *Element) QuerySelectorAll(_ context.Context, selector string) ([]extractor.Element, error) {
	return e.doc.wrapAll(e.sel.Find(selector)), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Href resolves the href attribute against the page URL, like the DOM
// href property does.
func (e *Element) Href(_ context.Context) (string, error) {
	return e.href(), nil
}

func (e *Element) href() string {
	raw, ok := e.sel.Attr("href")
	if !ok {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return e.doc.base.ResolveReference(ref).String()
}

func (e *Element) Text(_ context.Context) (string, error) {
	return e.sel.Text(), nil
}

// Materialize runs the attention hook once and reports the href if it
// changed. Static pages never change on their own, so without a hook the
// wait ends immediately with "".
func (e *Element) Materialize(ctx context.Context, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	before := e.href()
	if isPostShaped(before) {
		return before, nil
	}

	e.doc.mu.Lock()
	fn := e.doc.attention
	e.doc.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	fn(e)

	after := e.href()
	if after == before {
		return "", nil
	}
	return after, nil
}

// SetAttribute changes an attribute, as a page script would.
func (e *Element) SetAttribute(name, value string) {
	e.sel.SetAttr(name, value)
}

// Attr is a synchronous attribute accessor for attention hooks.
func (e *Element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return v
}

// ClosestAttr returns attribute name of the nearest ancestor-or-self
// matching selector.
func (e *Element) ClosestAttr(selector, name string) string {
	v, _ := e.sel.Closest(selector).Attr(name)
	return v
}

func isPostShaped(u string) bool {
	return strings.Contains(u, "/posts/") ||
		strings.Contains(u, "permalink.php") ||
		strings.Contains(u, "story_fbid=")
}
