package twitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NewRenderDriver selects the browser driver named by cfg.Links.Driver.
func NewRenderDriver(cfg Config) (RenderDriver, error) {
	switch cfg.Links.Driver {
	case "", "rod":
		return NewRodDriver(cfg), nil
	case "chromedp":
		return NewChromedpDriver(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown render driver %q", ErrConfiguration, cfg.Links.Driver)
	}
}

// RodDriver launches a headless Chrome with stealth evasions applied to
// every page.
type RodDriver struct {
	headless bool
	proxy    string
	timeout  time.Duration
}

// NewRodDriver reads the headless flag, proxy and page timeout from cfg.
func NewRodDriver(cfg Config) *RodDriver {
	return &RodDriver{
		headless: !cfg.Links.ShowBrowser,
		proxy:    cfg.Session.Proxy,
		timeout:  cfg.Links.PageTimeout,
	}
}

// Launch starts Chrome and opens a stealth page with media blocked. Failures
// wrap ErrBrowserNotReady.
func (d *RodDriver) Launch(ctx context.Context) (RenderSession, error) {
	l := launcher.New().Headless(d.headless)
	if d.proxy != "" {
		l = l.Proxy(d.proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", ErrBrowserNotReady, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect browser: %v", ErrBrowserNotReady, err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: create stealth page: %v", ErrBrowserNotReady, err)
	}

	s := &rodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  d.timeout,
	}
	s.setupResourceBlocking()
	return s, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	timeout  time.Duration
}

// setupResourceBlocking drops media and fonts. Stylesheets stay so the
// timeline keeps its layout and lazy loading still triggers on scroll.
func (s *rodSession) setupResourceBlocking() {
	router := s.browser.HijackRequests()
	blocked := []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.mp4", "*.woff*", "*analytics*"}
	for _, pattern := range blocked {
		router.MustAdd(pattern, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	s.router = router
}

func (s *rodSession) scoped(ctx context.Context) *rod.Page {
	p := s.page.Context(ctx)
	if s.timeout > 0 {
		p = p.Timeout(s.timeout)
	}
	return p
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.scoped(ctx)
	if err := p.Navigate(url); err != nil {
		return renderError("navigate", err)
	}
	if err := p.WaitStable(2 * time.Second); err != nil {
		return renderError("wait for page stable", err)
	}
	return nil
}

func (s *rodSession) StatusHrefs(ctx context.Context) ([]string, error) {
	doc, err := s.scoped(ctx).HTML()
	if err != nil {
		return nil, renderError("read rendered html", err)
	}
	return ExtractStatusHrefs([]byte(doc))
}

func (s *rodSession) ScrollByViewport(ctx context.Context) error {
	if _, err := s.scoped(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
		return renderError("scroll", err)
	}
	return nil
}

func (s *rodSession) Close() error {
	if s.router != nil {
		_ = s.router.Stop()
		s.router = nil
	}
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			return fmt.Errorf("close page: %w", err)
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return nil
}

// renderError maps driver deadlines onto ErrRenderTimeout.
func renderError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrRenderTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
