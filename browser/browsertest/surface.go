// Package browsertest provides an in-memory listing surface that implements
// browser.Page on top of goquery, for exercising the scraping pipeline
// without Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/mapscout/browser"
)

// Detail is the content of one listing's detail panel. Empty fields are not
// rendered at all, so their selectors match nothing.
type Detail struct {
	Name         string
	Address      string
	Website      string
	Phone        string
	Reviews      string // e.g. "(1,234)"
	Rating       string // e.g. "4.5"
	Introduction string
	Category     string
	Hours        string
}

// Listing is one result in the simulated feed.
type Listing struct {
	Detail Detail

	// NoPanel makes the detail panel never render after a click.
	NoPanel bool

	// ClickErr is returned when the listing is clicked.
	ClickErr error
}

// Surface simulates a lazily loading map listing page. The feed starts with
// Initial listings visible after navigation and each Scroll reveals PageSize
// more. It is safe for concurrent use.
type Surface struct {
	Listings []Listing
	Initial  int
	PageSize int

	// NavigateErr is returned by Navigate. HangNavigate makes Navigate block
	// until its context is done.
	NavigateErr  error
	HangNavigate bool

	mu          sync.Mutex
	visible     int
	navigated   bool
	detail      int // index of the open detail panel, -1 for none
	closed      int
	scrolls     int
	navigations []string
}

// NewSurface returns a surface that shows up to 3 listings after navigation
// and reveals 3 more per scroll.
func NewSurface(listings ...Listing) *Surface {
	return &Surface{Listings: listings, Initial: 3, PageSize: 3, detail: -1}
}

// Listings builds n listings named "<prefix> 1".."<prefix> n" with a full
// detail panel each.
func Listings(prefix string, n int) []Listing {
	out := make([]Listing, n)
	for i := range out {
		out[i] = Listing{Detail: Detail{
			Name:         fmt.Sprintf("%s %d", prefix, i+1),
			Address:      fmt.Sprintf("%d Main St", i+1),
			Website:      fmt.Sprintf("https://example.com/%d", i+1),
			Phone:        fmt.Sprintf("+1 555-010%d", i%10),
			Reviews:      fmt.Sprintf("(%d,0%02d)", i+1, i),
			Rating:       "4.5",
			Introduction: "Fresh every morning",
			Category:     "Bakery",
			Hours:        "Open ⋅ Closes 6 PM",
		}}
	}
	return out
}

type element struct {
	index int
	label string
}

func (e *element) Label() string { return fmt.Sprintf("#%d %s", e.index, e.label) }

// Navigate records url and resets the feed.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	if s.HangNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	s.navigated = true
	s.visible = min(s.Initial, len(s.Listings))
	s.detail = -1
	return nil
}

// WaitElement returns immediately when selector matches, otherwise blocks
// until ctx is done. Without a deadline it fails fast with ErrNotFound.
func (s *Surface) WaitElement(ctx context.Context, selector string) error {
	sel, err := s.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() > 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		return browser.ErrNotFound
	}
	<-ctx.Done()
	return ctx.Err()
}

// Text returns the text of the first node matching selector.
func (s *Surface) Text(ctx context.Context, selector string) (string, error) {
	sel, err := s.find(selector)
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 {
		return "", fmt.Errorf("%q: %w", selector, browser.ErrNotFound)
	}
	return sel.First().Text(), nil
}

// Attribute returns attribute name of the first node matching selector.
func (s *Surface) Attribute(ctx context.Context, selector, name string) (string, error) {
	sel, err := s.find(selector)
	if err != nil {
		return "", err
	}
	v, ok := sel.First().Attr(name)
	if !ok {
		return "", fmt.Errorf("%q[%s]: %w", selector, name, browser.ErrNotFound)
	}
	return v, nil
}

// Elements lists the nodes matching selector. Listing anchors are returned
// as clickable handles; data-index carries their feed position.
func (s *Surface) Elements(ctx context.Context, selector string) ([]browser.Element, error) {
	sel, err := s.find(selector)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, sel.Length())
	sel.Each(func(i int, n *goquery.Selection) {
		idx := i
		if v, ok := n.Attr("data-index"); ok {
			_, _ = fmt.Sscanf(v, "%d", &idx)
		}
		label, _ := n.Attr("aria-label")
		out = append(out, &element{index: idx, label: label})
	})
	return out, nil
}

// Click opens the listing's detail panel.
func (s *Surface) Click(ctx context.Context, el browser.Element) error {
	e, ok := el.(*element)
	if !ok {
		return errors.New("browsertest: foreign element")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.index < 0 || e.index >= s.visible {
		return fmt.Errorf("browsertest: listing %d is not visible", e.index)
	}
	l := s.Listings[e.index]
	if l.ClickErr != nil {
		return l.ClickErr
	}
	if l.NoPanel {
		s.detail = -1
		return nil
	}
	s.detail = e.index
	return nil
}

// Scroll reveals the next PageSize listings.
func (s *Surface) Scroll(ctx context.Context, container string) error {
	sel, err := s.find(container)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("%q: %w", container, browser.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
	s.visible = min(s.visible+s.PageSize, len(s.Listings))
	return nil
}

// Close marks the surface closed.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed reports whether Close was called at least once.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}

// Scrolls returns how many times Scroll succeeded.
func (s *Surface) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// Navigations returns the URLs passed to Navigate.
func (s *Surface) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// find renders the current page and runs selector against it.
func (s *Surface) find(selector string) (*goquery.Selection, error) {
	s.mu.Lock()
	markup := s.render()
	s.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

// render builds the page markup. Caller must hold s.mu.
func (s *Surface) render() string {
	if !s.navigated {
		return "<html><body></body></html>"
	}

	var b strings.Builder
	b.WriteString(`<html><body><div role="feed">`)
	for i := 0; i < s.visible; i++ {
		name := html.EscapeString(s.Listings[i].Detail.Name)
		fmt.Fprintf(&b,
			`<div role="article"><a href="https://www.google.com/maps/place/%d" data-index="%d" aria-label="%s"></a></div>`,
			i, i, name)
	}
	b.WriteString(`</div>`)
	if s.detail >= 0 {
		b.WriteString(DetailHTML(s.Listings[s.detail].Detail))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// DetailHTML renders d with the same markup as the live detail panel.
func DetailHTML(d Detail) string {
	esc := html.EscapeString
	var b strings.Builder
	b.WriteString(`<div role="main">`)
	if d.Name != "" {
		fmt.Fprintf(&b, `<h1 class="DUwDvf">%s</h1>`, esc(d.Name))
	}
	if d.Rating != "" || d.Reviews != "" {
		b.WriteString(`<div class="F7nice">`)
		if d.Rating != "" {
			fmt.Fprintf(&b, `<span aria-hidden="true">%s</span>`, esc(d.Rating))
		}
		if d.Reviews != "" {
			fmt.Fprintf(&b, `<span aria-label="%s reviews">%s</span>`, esc(d.Reviews), esc(d.Reviews))
		}
		b.WriteString(`</div>`)
	}
	if d.Category != "" {
		fmt.Fprintf(&b, `<div class="LBgpqf"><button class="DkEaL">%s</button></div>`, esc(d.Category))
	}
	if d.Introduction != "" {
		fmt.Fprintf(&b, `<div class="WeS02d"><div class="PYvSYb">%s</div></div>`, esc(d.Introduction))
	}
	if d.Address != "" {
		fmt.Fprintf(&b, `<button data-item-id="address"><div class="fontBodyMedium">%s</div></button>`, esc(d.Address))
	}
	if d.Website != "" {
		fmt.Fprintf(&b, `<a data-item-id="authority" href="%s">%s</a>`, esc(d.Website), esc(d.Website))
	}
	if d.Phone != "" {
		fmt.Fprintf(&b, `<button data-item-id="phone:tel:%s"><div class="fontBodyMedium">%s</div></button>`, esc(d.Phone), esc(d.Phone))
	}
	if d.Hours != "" {
		fmt.Fprintf(&b, `<button data-item-id="oh"><div class="fontBodyMedium">%s</div></button>`, esc(d.Hours))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// Launcher hands out surfaces built by New and remembers them so tests can
// assert every page was closed.
type Launcher struct {
	New func() *Surface
	Err error

	mu     sync.Mutex
	opened []*Surface
}

// NewPage implements browser.Launcher.
func (l *Launcher) NewPage(ctx context.Context) (browser.Page, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	s := l.New()
	l.mu.Lock()
	l.opened = append(l.opened, s)
	l.mu.Unlock()
	return s, nil
}

// Opened returns every surface handed out so far.
func (l *Launcher) Opened() []*Surface {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Surface(nil), l.opened...)
}
