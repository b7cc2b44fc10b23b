package extractor

import (
	"context"
	"time"
)

// Element is one node of a rendered page. The extractor only sees pages
// through this interface so it runs the same way against a live browser
// tab and a static HTML fixture.
//
// Lookups that find nothing return a nil Element and a nil error. Errors
// are reserved for backend failures.
type Element interface {
	// Closest returns the nearest ancestor-or-self matching selector.
	Closest(ctx context.Context, selector string) (Element, error)
	// QuerySelector returns the first descendant matching selector.
	QuerySelector(ctx context.Context, selector string) (Element, error)
	// QuerySelectorAll returns every descendant matching selector.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
	// Attribute returns the raw attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Href returns the resolved href property, empty when there is none.
	Href(ctx context.Context) (string, error)
	// Text returns the rendered text of the node.
	Text(ctx context.Context) (string, error)
	// Materialize draws attention to a link (scroll, focus, hover events)
	// and waits at most timeout for its href to change. It returns the
	// best href known afterwards, or "" when nothing usable appeared.
	Materialize(ctx context.Context, timeout time.Duration) (string, error)
}
