package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// maxBodyBytes bounds how much of a menu page is read.
const maxBodyBytes = 5 << 20

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// SimpleFetcher performs plain HTTP GET requests with browser-like headers.
type SimpleFetcher struct {
	client          *http.Client
	userAgentSelect *UserAgentSelector
}

// NewSimpleFetcher builds a fetcher. maxRedirects <= 0 disables redirect
// following.
func NewSimpleFetcher(timeout time.Duration, maxRedirects int) *SimpleFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SimpleFetcher{
		client: &http.Client{
			Timeout:       timeout,
			CheckRedirect: redirectPolicy(maxRedirects),
		},
		userAgentSelect: NewUserAgentSelector(),
	}
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if max <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) >= max {
			return errors.Newf("stopped after %d redirects", max)
		}
		return nil
	}
}

// FetchStatic downloads url. Any transport failure, timeout or non-2xx status
// is returned as an error.
func (sf *SimpleFetcher) FetchStatic(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	// Custom user agent takes precedence over the browser agent selector
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = sf.userAgentSelect.GetUserAgent(opts.BrowserAgent)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "sk-SK,sk;q=0.9,cs;q=0.8,en;q=0.7")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")

	for _, cookie := range opts.Cookies {
		req.AddCookie(cookie)
	}

	resp, err := sf.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return &FetchResult{
		HTML:       string(body),
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}
