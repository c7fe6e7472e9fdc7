package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/mapscout/config"
	"github.com/ysmood/gson"
)

// Rod launches one Chrome process and hands out pages, each living in its
// own incognito browser context so cookies and storage never leak between
// jobs. It is safe for concurrent use.
type Rod struct {
	browser  *rod.Browser
	cfg      config.BrowserConfig
	sessions atomic.Int32
}

// NewRod launches a headless browser.
func NewRod(cfg config.BrowserConfig) (*Rod, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return &Rod{browser: b, cfg: cfg}, nil
}

// ActiveSessions returns the number of pages currently open.
func (r *Rod) ActiveSessions() int {
	return int(r.sessions.Load())
}

// Close kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (r *Rod) Close() {
	slog.Info("browser shutting down")
	r.browser.MustClose()
}

// NewPage opens a fresh incognito context and a page inside it.
//
// Stealth, user agent, viewport, extra headers and the hijack router are all
// installed before the caller navigates; they only affect navigations that
// start after they are in place.
func (r *Rod) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Not bound to ctx: Close must still dispose it after the job deadline.
	incognito, err := r.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: create incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if r.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if r.cfg.UserAgent != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      r.cfg.UserAgent,
			AcceptLanguage: "en-US",
		}); uaErr != nil {
			slog.Warn("user agent override failed", "error", uaErr)
		}
	}
	if r.cfg.ViewportWidth > 0 && r.cfg.ViewportHeight > 0 {
		if vpErr := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             r.cfg.ViewportWidth,
			Height:            r.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); vpErr != nil {
			slog.Warn("viewport override failed", "error", vpErr)
		}
	}
	if hdrErr := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(extraHeaders),
	}).Call(page); hdrErr != nil {
		slog.Warn("extra headers override failed", "error", hdrErr)
	}

	router := setupHijack(page, r.cfg.BlockedResourceTypes)

	r.sessions.Add(1)
	return &rodPage{
		page:      page,
		incognito: incognito,
		router:    router,
		release:   func() { r.sessions.Add(-1) },
	}, nil
}

// rodPage adapts *rod.Page to Page.
type rodPage struct {
	page      *rod.Page
	incognito *rod.Browser
	router    *rod.HijackRouter
	release   func()
	closeOnce sync.Once
}

// rodElement adapts *rod.Element to Element.
type rodElement struct {
	el    *rod.Element
	index int
}

func (e *rodElement) Label() string { return fmt.Sprintf("element #%d", e.index) }

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	cp := p.page.Context(ctx)
	if err := cp.Navigate(url); err != nil {
		return err
	}
	return cp.WaitLoad()
}

func (p *rodPage) WaitElement(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}

func (p *rodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *rodPage) Attribute(ctx context.Context, selector, name string) (string, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("attribute %q on %q: %w", name, selector, ErrNotFound)
	}
	return *v, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el, index: i}
	}
	return out, nil
}

func (p *rodPage) Click(ctx context.Context, el Element) error {
	re, ok := el.(*rodElement)
	if !ok {
		return errors.New("browser: element does not belong to a rod page")
	}
	return re.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Scroll(ctx context.Context, container string) error {
	el, err := p.page.Context(ctx).Element(container)
	if err != nil {
		return err
	}
	_, err = el.Eval(`() => this.scrollTo(0, this.scrollHeight)`)
	return err
}

// Close uses the original page reference (without request context), so
// cleanup succeeds even when the job's context has expired.
func (p *rodPage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		defer p.release()
		if p.router != nil {
			_ = p.router.Stop()
		}
		if closeErr := p.page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "error", closeErr)
		}
		err = p.incognito.Close()
	})
	return err
}

// extraHeaders are sent with every page request so listings render in English.
var extraHeaders = map[string]string{"Accept-Language": "en-US,en;q=0.9"}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
