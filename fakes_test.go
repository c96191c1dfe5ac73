package twitter

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"testing"
	"time"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"go.uber.org/zap/zaptest"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testConfig returns defaults with the output directory moved into a temp dir.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func statusHref(account string, id int) string {
	return fmt.Sprintf("/%s/status/%d", account, id)
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 12, 0, 0, 0, time.UTC)
}

// recordingPacer never sleeps and remembers the windows it was asked for.
type recordingPacer struct {
	windows []Window
}

func (p *recordingPacer) Pause(ctx context.Context, w Window) error {
	p.windows = append(p.windows, w)
	return ctx.Err()
}

// ---------------------------------------------------------------------------
// Render driver fakes
// ---------------------------------------------------------------------------

type fakeDriver struct {
	session   *fakeSession
	launchErr error
	launches  int
}

func (d *fakeDriver) Launch(context.Context) (RenderSession, error) {
	d.launches++
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	return d.session, nil
}

// fakeSession serves hrefs(scrolls) as the current DOM, so the page grows as
// it is scrolled.
type fakeSession struct {
	hrefs       func(scrolls int) []string
	extractErr  func(call int) error
	scrollErr   error
	navigateErr error

	navigated    []string
	extractCalls int
	scrolls      int
	closed       bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) StatusHrefs(context.Context) ([]string, error) {
	s.extractCalls++
	if s.extractErr != nil {
		if err := s.extractErr(s.extractCalls); err != nil {
			return nil, err
		}
	}
	if s.hrefs == nil {
		return nil, nil
	}
	return s.hrefs(s.scrolls), nil
}

func (s *fakeSession) ScrollByViewport(context.Context) error {
	if s.scrollErr != nil {
		return s.scrollErr
	}
	s.scrolls++
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// ---------------------------------------------------------------------------
// Record source fakes
// ---------------------------------------------------------------------------

// fakeBatch is one Batch call: records are yielded, then err if set.
type fakeBatch struct {
	records []RawRecord
	err     error
}

type fakeSource struct {
	profile    Profile
	profileErr error
	batches    []fakeBatch

	cursors    []string
	batchSizes []int
}

func (s *fakeSource) Profile(context.Context, string) (Profile, error) {
	return s.profile, s.profileErr
}

func (s *fakeSource) Batch(_ context.Context, _ string, batchSize int, cursor string) iter.Seq2[RawRecord, error] {
	call := len(s.cursors)
	s.cursors = append(s.cursors, cursor)
	s.batchSizes = append(s.batchSizes, batchSize)
	return func(yield func(RawRecord, error) bool) {
		if call >= len(s.batches) {
			return
		}
		b := s.batches[call]
		for _, r := range b.records {
			if !yield(r, nil) {
				return
			}
		}
		if b.err != nil {
			yield(RawRecord{}, b.err)
		}
	}
}

// fakePlatform is a PlatformClient that records every call.
type fakePlatform struct {
	fakeSource

	loginErr   error
	loggedIn   bool
	verified   bool
	logoutErr  error
	calls      []string
	savedPath  string
	loadErr    error
	restorable bool
}

func (p *fakePlatform) Login(_ context.Context, username, password string) error {
	p.calls = append(p.calls, "login:"+username)
	if p.loginErr != nil {
		return p.loginErr
	}
	p.loggedIn = p.verified
	return nil
}

func (p *fakePlatform) IsLoggedIn(context.Context) bool {
	p.calls = append(p.calls, "is_logged_in")
	return p.loggedIn
}

func (p *fakePlatform) Logout(context.Context) error {
	p.calls = append(p.calls, "logout")
	p.loggedIn = false
	return p.logoutErr
}

func (p *fakePlatform) Profile(ctx context.Context, account string) (Profile, error) {
	p.calls = append(p.calls, "profile")
	return p.fakeSource.Profile(ctx, account)
}

// sessionPlatform adds cookie persistence to fakePlatform.
type sessionPlatform struct {
	*fakePlatform
}

func (p sessionPlatform) SaveSession(path string) error {
	p.calls = append(p.calls, "save_session")
	p.savedPath = path
	return nil
}

func (p sessionPlatform) LoadSession(path string) error {
	p.calls = append(p.calls, "load_session")
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loggedIn = p.restorable
	return nil
}

// ---------------------------------------------------------------------------
// Platform scraper fake
// ---------------------------------------------------------------------------

type fakePage struct {
	tweets []*twitterscraper.Tweet
	next   string
	err    error
}

// fakeTimeline serves timeline pages keyed by continuation token.
type fakeTimeline struct {
	pages   map[string]fakePage
	profile twitterscraper.Profile
	err     error

	requests []fetchRequest
	cookies  []*http.Cookie
	proxy    string
	loggedIn bool
}

type fetchRequest struct {
	count  int
	cursor string
}

func (f *fakeTimeline) Login(credentials ...string) error {
	if f.err != nil {
		return f.err
	}
	f.loggedIn = len(credentials) >= 2
	return nil
}

func (f *fakeTimeline) IsLoggedIn() bool { return f.loggedIn }

func (f *fakeTimeline) Logout() error {
	f.loggedIn = false
	return f.err
}

func (f *fakeTimeline) GetProfile(string) (twitterscraper.Profile, error) {
	return f.profile, f.err
}

func (f *fakeTimeline) FetchTweets(_ string, n int, cursor string) ([]*twitterscraper.Tweet, string, error) {
	f.requests = append(f.requests, fetchRequest{count: n, cursor: cursor})
	p := f.pages[cursor]
	return p.tweets, p.next, p.err
}

func (f *fakeTimeline) GetCookies() []*http.Cookie { return f.cookies }

func (f *fakeTimeline) SetCookies(cookies []*http.Cookie) { f.cookies = cookies }

func (f *fakeTimeline) SetProxy(proxyAddr string) error {
	f.proxy = proxyAddr
	return nil
}

func newTestClient(t *testing.T, api timelineAPI) *Client {
	t.Helper()
	return &Client{
		api:     api,
		limiter: newLimiter(0),
		logger:  zaptest.NewLogger(t),
		tokens:  make(map[string]string),
	}
}

func tweets(from, to int) []*twitterscraper.Tweet {
	var out []*twitterscraper.Tweet
	for i := from; i <= to; i++ {
		out = append(out, &twitterscraper.Tweet{
			ID:         fmt.Sprintf("%d", i),
			Text:       fmt.Sprintf("post %d", i),
			TimeParsed: day(1).Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}
