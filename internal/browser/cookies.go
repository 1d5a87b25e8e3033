// Package browser reads cookies from locally installed browsers so that menu
// pages hidden behind consent walls can be fetched with the user's session.
package browser

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register every browser store

	"github.com/cockroachdb/errors"
)

type BrowserType string

const (
	BrowserNone    BrowserType = ""
	BrowserAuto    BrowserType = "auto"
	BrowserChrome  BrowserType = "chrome"
	BrowserFirefox BrowserType = "firefox"
	BrowserSafari  BrowserType = "safari"
	BrowserZen     BrowserType = "zen"
)

// ParseBrowserType accepts the config spelling of a browser. Unknown values
// disable cookie loading.
func ParseBrowserType(s string) BrowserType {
	switch b := BrowserType(strings.ToLower(strings.TrimSpace(s))); b {
	case BrowserAuto, BrowserChrome, BrowserFirefox, BrowserSafari, BrowserZen:
		return b
	}
	return BrowserNone
}

// CookieExtractor loads cookies for a target host from one browser profile.
type CookieExtractor struct {
	browserType BrowserType
}

func NewCookieExtractor(browserType BrowserType) *CookieExtractor {
	return &CookieExtractor{browserType: browserType}
}

// Enabled reports whether cookies should be loaded at all.
func (ce *CookieExtractor) Enabled() bool {
	return ce != nil && ce.browserType != BrowserNone
}

// ExtractCookies returns the cookies stored for the host of targetURL. With
// BrowserAuto the first browser holding any matching cookie wins.
func (ce *CookieExtractor) ExtractCookies(ctx context.Context, targetURL string) ([]*http.Cookie, error) {
	if !ce.Enabled() {
		return nil, nil
	}

	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse URL")
	}
	host := parsedURL.Hostname()

	if ce.browserType != BrowserAuto {
		return ce.extractFromBrowser(ctx, ce.browserType, host), nil
	}

	for _, b := range []BrowserType{BrowserChrome, BrowserFirefox, BrowserZen, BrowserSafari} {
		if cookies := ce.extractFromBrowser(ctx, b, host); len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil
}

func (ce *CookieExtractor) extractFromBrowser(ctx context.Context, browserType BrowserType, domain string) []*http.Cookie {
	var cookies []*http.Cookie

	for cookie, err := range kooky.TraverseCookies(ctx) {
		if err != nil || cookie == nil || cookie.Browser == nil {
			continue
		}
		if !matchesBrowserType(cookie.Browser.Browser(), cookie.Browser.FilePath(), browserType) {
			continue
		}
		if !matchesDomain(cookie.Domain, domain) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HttpOnly,
		})
	}

	return cookies
}

func matchesBrowserType(browserName, storePath string, browserType BrowserType) bool {
	browserName = strings.ToLower(browserName)
	storePath = strings.ToLower(storePath)

	switch browserType {
	case BrowserAuto:
		return true
	case BrowserChrome:
		return strings.Contains(browserName, "chrome") || strings.Contains(browserName, "chromium")
	case BrowserFirefox:
		return strings.Contains(browserName, "firefox") && !strings.Contains(storePath, "zen")
	case BrowserSafari:
		return strings.Contains(browserName, "safari")
	case BrowserZen:
		return strings.Contains(browserName, "zen") ||
			(strings.Contains(browserName, "firefox") && strings.Contains(storePath, "zen"))
	}
	return false
}

func matchesDomain(cookieDomain, targetDomain string) bool {
	if cookieDomain == "" || targetDomain == "" {
		return false
	}

	cookieDomain = strings.TrimPrefix(strings.ToLower(cookieDomain), ".")
	targetDomain = strings.ToLower(targetDomain)

	return cookieDomain == targetDomain || strings.HasSuffix(targetDomain, "."+cookieDomain)
}
