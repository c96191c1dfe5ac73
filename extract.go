package twitter

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// statusLinkSelector matches every anchor that points at a post, including
// quoted and embedded posts of other accounts.
const statusLinkSelector = `a[href*="/status/"]`

var statusPath = regexp.MustCompile(`^/([A-Za-z0-9_]{1,15})/status/([0-9]+)$`)

// ExtractStatusHrefs returns the distinct status-link hrefs of a rendered
// document, in document order.
func ExtractStatusHrefs(htmlBody []byte) ([]string, error) {
	root, err := html.Parse(bytes.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	seen := make(map[string]struct{})
	var hrefs []string
	doc.Find(statusLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		hrefs = append(hrefs, href)
	})
	return hrefs, nil
}

// canonicalStatusURL resolves href against the platform host and accepts it
// only if it is a single-post URL of account. The returned URL uses the
// configured spelling of the account and carries no query or fragment.
func canonicalStatusURL(href, host, account string) (PostURL, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	if u.Host != "" {
		if u.Scheme != "" && u.Scheme != "https" && u.Scheme != "http" {
			return "", false
		}
		h := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if h != strings.ToLower(host) {
			return "", false
		}
	} else if u.Scheme != "" || !strings.HasPrefix(u.Path, "/") {
		return "", false
	}

	m := statusPath.FindStringSubmatch(u.Path)
	if m == nil || !strings.EqualFold(m[1], account) {
		return "", false
	}
	return PostURL(StatusURL(host, account, m[2])), true
}
