package twitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RenderDriver starts browser sessions for the link collector.
type RenderDriver interface {
	Launch(ctx context.Context) (RenderSession, error)
}

// RenderSession is one rendered page. StatusHrefs evaluates the current DOM
// and returns the raw hrefs of its status links.
type RenderSession interface {
	Navigate(ctx context.Context, url string) error
	StatusHrefs(ctx context.Context) ([]string, error)
	ScrollByViewport(ctx context.Context) error
	Close() error
}

// DomScrollCollector collects post URLs of one account by scrolling its
// rendered profile page.
type DomScrollCollector struct {
	driver      RenderDriver
	host        string
	account     string
	limits      Limits
	scrollDelay Window
	retryDelay  Window
	pacer       Pacer
	logger      *zap.Logger
}

// NewDomScrollCollector builds a link collector from cfg.Links. A nil logger
// disables logging.
func NewDomScrollCollector(cfg Config, driver RenderDriver, logger *zap.Logger) *DomScrollCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomScrollCollector{
		driver:  driver,
		host:    cfg.PlatformHost,
		account: cfg.Account,
		limits: Limits{
			MaxItems:   cfg.Links.MaxLinks,
			MaxSteps:   cfg.Links.MaxScrolls,
			MaxRetries: cfg.Links.MaxRetries,
		},
		scrollDelay: cfg.Links.ScrollDelay,
		retryDelay:  cfg.Links.RetryDelay,
		pacer:       RandomPacer{},
		logger:      logger.With(zap.String("account", cfg.Account)),
	}
}

// WithPacer replaces the delay strategy.
func (c *DomScrollCollector) WithPacer(p Pacer) *DomScrollCollector {
	c.pacer = p
	return c
}

// Collect opens the profile page and scrolls until the link target, the
// scroll ceiling or the retry budget is reached. Exhausting the retry budget
// is not an error: the links gathered so far are returned.
func (c *DomScrollCollector) Collect(ctx context.Context) ([]PostURL, error) {
	session, err := c.driver.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()

	profileURL := "https://" + c.host + "/" + c.account
	if err := session.Navigate(ctx, profileURL); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPageLoad, profileURL, err)
	}

	capacity := max(c.limits.MaxItems, 0)
	acc := &linkSet{
		seen:  make(map[PostURL]struct{}, capacity),
		links: make([]PostURL, 0, capacity),
	}

	steps, failures := 0, 0
	for !c.limits.full(acc.len()) && !c.limits.exhausted(steps) {
		if err := c.step(ctx, session, acc); err != nil {
			if ctx.Err() != nil {
				return acc.links, ctx.Err()
			}
			failures++
			c.logger.Warn("Scroll step failed",
				zap.Int("failures", failures),
				zap.Int("retry_budget", c.limits.MaxRetries),
				zap.Error(err))
			if failures >= c.limits.MaxRetries {
				c.logger.Warn("Retry budget exhausted, keeping collected links",
					zap.Int("collected", acc.len()))
				break
			}
			if err := c.pacer.Pause(ctx, c.retryDelay); err != nil {
				return acc.links, err
			}
			continue
		}

		failures = 0
		steps++
		c.logger.Info("Scrolled profile",
			zap.Int("scroll", steps),
			zap.Int("collected", acc.len()))

		if err := c.pacer.Pause(ctx, c.scrollDelay); err != nil {
			return acc.links, err
		}
	}

	c.logger.Info("Link collection finished",
		zap.Int("collected", acc.len()),
		zap.Int("scrolls", steps))
	return acc.links, nil
}

// CollectAndPersist runs Collect and writes the links file. The file is
// written whenever the scroll loop ran, including an empty set after the
// retry budget ran out and a partial set after cancellation, in which case
// the cancellation error is returned after the write. Launch and page load
// failures write nothing.
func (c *DomScrollCollector) CollectAndPersist(ctx context.Context, path string) ([]PostURL, error) {
	links, err := c.Collect(ctx)
	if err != nil && ctx.Err() == nil {
		return nil, err
	}
	if werr := WriteLinks(path, links); werr != nil {
		return links, werr
	}
	c.logger.Info("Saved links", zap.String("path", path), zap.Int("count", len(links)))
	return links, err
}

// step extracts the links of the current view, then scrolls one viewport.
// Links accepted before a scroll failure are kept.
func (c *DomScrollCollector) step(ctx context.Context, session RenderSession, acc *linkSet) error {
	hrefs, err := session.StatusHrefs(ctx)
	if err != nil {
		return fmt.Errorf("extract links: %w", err)
	}

	for _, href := range hrefs {
		if c.limits.full(acc.len()) {
			break
		}
		if link, ok := canonicalStatusURL(href, c.host, c.account); ok {
			acc.add(link)
		}
	}

	if err := session.ScrollByViewport(ctx); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// linkSet is an insertion-ordered set of post URLs.
type linkSet struct {
	seen  map[PostURL]struct{}
	links []PostURL
}

func (s *linkSet) add(link PostURL) bool {
	if _, ok := s.seen[link]; ok {
		return false
	}
	s.seen[link] = struct{}{}
	s.links = append(s.links, link)
	return true
}

func (s *linkSet) len() int {
	return len(s.links)
}
