package browser

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/leadscout/extractor"
	"github.com/hazyhaar/leadscout/scraper"
)

// Page adapts a rod tab to scraper.Page.
type Page struct {
	page *rod.Page
}

var _ scraper.Page = (*Page)(nil)

// NewPage wraps a rod tab.
func NewPage(p *rod.Page) *Page { return &Page{page: p} }

// Posts returns the post containers currently in the DOM.
func (p *Page) Posts(ctx context.Context) ([]extractor.Element, error) {
	els, err := p.page.Context(ctx).Elements(extractor.PostSelector)
	if err != nil {
		return nil, err
	}
	out := make([]extractor.Element, 0, len(els))
	for _, el := range els {
		out = append(out, Wrap(el))
	}
	return out, nil
}

// ScrollBy scrolls the window smoothly by px pixels.
func (p *Page) ScrollBy(ctx context.Context, px int) error {
	_, err := p.page.Context(ctx).Eval(`(px) => window.scrollBy({ top: px, behavior: 'smooth' })`, px)
	return err
}
