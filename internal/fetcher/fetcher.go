package fetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
)

type FetchMode string

const (
	FetchModeAuto   FetchMode = "auto"
	FetchModeStatic FetchMode = "static"
	FetchModeJS     FetchMode = "javascript"
)

// DefaultTimeout bounds a single document fetch.
const DefaultTimeout = 20 * time.Second

// ParseFetchMode maps a config value to a FetchMode, defaulting to static.
func ParseFetchMode(s string) FetchMode {
	switch FetchMode(strings.ToLower(strings.TrimSpace(s))) {
	case FetchModeAuto:
		return FetchModeAuto
	case FetchModeJS, "js":
		return FetchModeJS
	default:
		return FetchModeStatic
	}
}

type FetchOptions struct {
	Mode            FetchMode
	Timeout         time.Duration
	UserAgent       string
	BrowserAgent    string
	Cookies         []*http.Cookie
	WaitForSelector string
}

type FetchResult struct {
	HTML       string
	URL        string
	StatusCode int
	UsedJS     bool
}

// Renderer loads a page in a browser and returns the rendered HTML.
type Renderer func(ctx context.Context, url string, opts FetchOptions) (string, error)

// ContentFetcher picks between a plain GET and a headless Chrome render.
type ContentFetcher struct {
	static *SimpleFetcher
	render Renderer
}

func NewContentFetcher(static *SimpleFetcher) *ContentFetcher {
	return &ContentFetcher{static: static, render: renderWithChrome}
}

// WithRenderer replaces the JavaScript renderer.
func (cf *ContentFetcher) WithRenderer(r Renderer) *ContentFetcher {
	cf.render = r
	return cf
}

func (cf *ContentFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	switch opts.Mode {
	case FetchModeJS:
		return cf.fetchWithJS(ctx, url, opts)
	case FetchModeAuto:
		result, err := cf.static.FetchStatic(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		if !needsJSRendering(result.HTML) {
			return result, nil
		}
		rendered, err := cf.fetchWithJS(ctx, url, opts)
		if err != nil {
			// The static page is still better than nothing.
			return result, nil
		}
		return rendered, nil
	default:
		return cf.static.FetchStatic(ctx, url, opts)
	}
}

func (cf *ContentFetcher) fetchWithJS(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	html, err := cf.render(ctx, url, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render page")
	}
	return &FetchResult{HTML: html, URL: url, StatusCode: http.StatusOK, UsedJS: true}, nil
}

func renderWithChrome(ctx context.Context, url string, opts FetchOptions) (string, error) {
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if opts.WaitForSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitForSelector))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body"))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))
	if err := chromedp.Run(chromeCtx, tasks); err != nil {
		return "", errors.Wrap(err, "failed to run Chrome tasks")
	}
	return html, nil
}

// needsJSRendering guesses whether a statically fetched page is an empty
// shell filled in by client-side scripts.
func needsJSRendering(html string) bool {
	lower := strings.ToLower(html)

	for _, marker := range []string{"data-reactroot", "id=\"root\"></div>", "id=\"app\"></div>", "ng-app", "__next_data__", "wix-warmup-data"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	if strings.Count(lower, "<script") > 5 && len(strings.TrimSpace(bodyText(lower))) < 500 {
		return true
	}
	return false
}

// bodyText returns the markup between <body> and </body>, or the whole input.
func bodyText(html string) string {
	start := strings.Index(html, "<body")
	if start == -1 {
		return html
	}
	open := strings.Index(html[start:], ">")
	if open == -1 {
		return html
	}
	start += open + 1

	end := strings.Index(html[start:], "</body>")
	if end == -1 {
		return html[start:]
	}
	return html[start : start+end]
}
