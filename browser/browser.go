// Package browser defines the narrow automation capability the scraping
// pipeline depends on, plus a go-rod implementation of it.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("browser: element not found")

// Element is a handle to one node returned by Page.Elements. It is only
// valid for the Page that produced it.
type Element interface {
	// Label is a short description used in logs.
	Label() string
}

// Page is one isolated automation context. Every blocking call honours the
// deadline carried by ctx.
type Page interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// WaitElement blocks until selector matches at least one node.
	WaitElement(ctx context.Context, selector string) error

	// Text returns the text content of the first node matching selector.
	Text(ctx context.Context, selector string) (string, error)

	// Attribute returns attribute name of the first node matching selector.
	Attribute(ctx context.Context, selector, name string) (string, error)

	// Elements lists the nodes currently matching selector without waiting.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Click clicks el.
	Click(ctx context.Context, el Element) error

	// Scroll scrolls the first node matching container to its bottom.
	Scroll(ctx context.Context, container string) error

	// Close releases the page and everything it owns. Safe to call twice.
	Close() error
}

// Launcher hands out fresh, isolated pages.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
}
