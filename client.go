package twitter

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxPageSize bounds a single timeline request; larger batches are served
// by several pages.
const maxPageSize = 100

// endOfTimeline marks record ids of the final timeline page. A batch resumed
// from one of them is empty.
const endOfTimeline = "\x00end"

// timelineAPI is the part of the platform scraper the client uses.
// Replaceable for testing.
type timelineAPI interface {
	Login(credentials ...string) error
	IsLoggedIn() bool
	Logout() error
	GetProfile(username string) (twitterscraper.Profile, error)
	FetchTweets(user string, maxTweetsNbr int, cursor string) ([]*twitterscraper.Tweet, string, error)
	GetCookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	SetProxy(proxyAddr string) error
}

// Client is the authenticated platform client. It serves timeline batches
// keyed by record-id cursors on top of the platform's own continuation
// tokens.
type Client struct {
	api     timelineAPI
	limiter *rate.Limiter
	logger  *zap.Logger

	// tokens maps every record id of the latest batch to the continuation
	// token that follows its page.
	tokens map[string]string
}

// NewClient creates a logged-out client. Page requests are spaced by
// cfg.Records.RequestInterval.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:     twitterscraper.New(),
		limiter: newLimiter(cfg.Records.RequestInterval),
		logger:  logger,
		tokens:  make(map[string]string),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// SetProxy routes platform traffic through an HTTP/HTTPS or SOCKS5 proxy.
func (c *Client) SetProxy(proxyAddr string) error {
	if proxyAddr == "" {
		return nil
	}
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	if err := c.api.SetProxy(proxyAddr); err != nil {
		return fmt.Errorf("set proxy: %w", err)
	}
	return nil
}

// Profile resolves the account metadata. Only the post count is used, for
// progress reporting.
func (c *Client) Profile(ctx context.Context, account string) (Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Profile{}, err
	}
	p, err := c.api.GetProfile(account)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %v", ErrProfileLookup, account, err)
	}
	return Profile{Username: p.Username, ExpectedCount: p.TweetsCount}, nil
}

// Batch yields up to batchSize records of account's timeline, starting after
// the record whose id is cursor. An empty or unknown cursor starts at the
// newest post; a cursor from the last page yields nothing. A fetch failure is
// yielded once and ends the sequence.
func (c *Client) Batch(ctx context.Context, account string, batchSize int, cursor string) iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		token := c.tokens[cursor]
		c.tokens = make(map[string]string)
		if token == endOfTimeline {
			return
		}

		yielded := 0
		for yielded < batchSize {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(RawRecord{}, err)
				return
			}

			tweets, next, err := c.api.FetchTweets(account, min(batchSize-yielded, maxPageSize), token)
			if err != nil {
				yield(RawRecord{}, fmt.Errorf("%w: timeline of %s: %v", ErrFetch, account, err))
				return
			}
			c.logger.Debug("Fetched timeline page",
				zap.String("account", account),
				zap.Int("tweets", len(tweets)),
				zap.Bool("has_next", next != ""))

			last := len(tweets) == 0 || next == "" || next == token
			resume := next
			if last {
				resume = endOfTimeline
			}
			for _, t := range tweets {
				if t == nil {
					continue
				}
				if t.ID != "" {
					c.tokens[t.ID] = resume
				}
				yielded++
				if !yield(parseTweet(t), nil) {
					return
				}
			}

			if last {
				return
			}
			token = next
		}
	}
}

// parseTweet converts a platform tweet to a RawRecord.
func parseTweet(t *twitterscraper.Tweet) RawRecord {
	created := t.TimeParsed
	if created.IsZero() && t.Timestamp > 0 {
		created = time.Unix(t.Timestamp, 0)
	}
	return RawRecord{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: created.UTC(),
		Likes:     t.Likes,
		Retweets:  t.Retweets,
		IsRepost:  t.IsRetweet,
	}
}
