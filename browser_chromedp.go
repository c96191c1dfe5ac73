package twitter

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromedpDriver is the alternative render driver, driving Chrome through
// the DevTools protocol with chromedp.
type ChromedpDriver struct {
	headless bool
	proxy    string
	timeout  time.Duration
}

// NewChromedpDriver reads the headless flag, proxy and page timeout from cfg.
func NewChromedpDriver(cfg Config) *ChromedpDriver {
	return &ChromedpDriver{
		headless: !cfg.Links.ShowBrowser,
		proxy:    cfg.Session.Proxy,
		timeout:  cfg.Links.PageTimeout,
	}
}

// Launch starts Chrome under an exec allocator and opens one tab. Failures
// wrap ErrBrowserNotReady.
func (d *ChromedpDriver) Launch(ctx context.Context) (RenderSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.headless),
	)
	if d.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(d.proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// An empty Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start chrome: %v", ErrBrowserNotReady, err)
	}

	return &chromedpSession{ctx: browserCtx, cancel: cancel, timeout: d.timeout}, nil
}

type chromedpSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the browser tab, bounded by the page timeout and
// by the caller's context.
func (s *chromedpSession) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, s.timeout)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return renderError(op, err)
	}
	return nil
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	)
}

func (s *chromedpSession) StatusHrefs(ctx context.Context) ([]string, error) {
	var doc string
	if err := s.run(ctx, "read rendered html", chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return ExtractStatusHrefs([]byte(doc))
}

func (s *chromedpSession) ScrollByViewport(ctx context.Context) error {
	var ok bool
	return s.run(ctx, "scroll",
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight); true`, &ok),
	)
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}
