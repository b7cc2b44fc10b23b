package htmldom

import (
	"context"
	"sync"

	"github.com/hazyhaar/leadscout/extractor"
)

// Feed replays a saved group page as a virtualised feed: only the first
// Visible posts are reported, and each scroll reveals PerScroll more.
type Feed struct {
	doc *Document

	mu        sync.Mutex
	visible   int
	perScroll int
	scrolled  int
}

// NewFeed exposes doc's posts, initial at first and perScroll more per
// ScrollBy call.
func NewFeed(doc *Document, initial, perScroll int) *Feed {
	return &Feed{doc: doc, visible: initial, perScroll: perScroll}
}

// Posts returns the currently visible post containers.
func (f *Feed) Posts(_ context.Context) ([]extractor.Element, error) {
	all := f.doc.Find(extractor.PostSelector)
	f.mu.Lock()
	n := f.visible
	f.mu.Unlock()
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// ScrollBy reveals more posts. The pixel distance is recorded only.
func (f *Feed) ScrollBy(ctx context.Context, px int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.visible += f.perScroll
	f.scrolled += px
	f.mu.Unlock()
	return nil
}

// Scrolled returns the total pixel distance scrolled so far.
func (f *Feed) Scrolled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolled
}
