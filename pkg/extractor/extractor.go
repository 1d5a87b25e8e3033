// Package extractor wires the fetcher, browser cookies and the staged menu
// extractor together from a loaded configuration.
package extractor

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/browser"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/config"
	menuextractor "github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/extractor"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/fetcher"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

type Extractor struct {
	config  *config.Config
	fetcher *fetcher.ContentFetcher
	cookies *browser.CookieExtractor
	menus   *menuextractor.Extractor
}

func New(cfg *config.Config) *Extractor {
	maxRedirects := cfg.Network.MaxRedirects
	if !cfg.Network.FollowRedirects {
		maxRedirects = 0
	}
	return &Extractor{
		config:  cfg,
		fetcher: fetcher.NewContentFetcher(fetcher.NewSimpleFetcher(cfg.FetchTimeout(), maxRedirects)),
		cookies: browser.NewCookieExtractor(cfg.CookieBrowser()),
		menus: menuextractor.New(menuextractor.Options{
			MinItems:            cfg.Extraction.MinItems,
			MaxLines:            cfg.Extraction.MaxLines,
			ReadabilityFallback: cfg.Extraction.ReadabilityFallback,
		}),
	}
}

// WithRenderer replaces the headless Chrome renderer.
func (e *Extractor) WithRenderer(r fetcher.Renderer) *Extractor {
	e.fetcher.WithRenderer(r)
	return e
}

// Extract fetches the venue page and returns its menu lines. It never fails;
// problems are described in the trace.
func (e *Extractor) Extract(ctx context.Context, src menu.SourceConfig) menu.ExtractionResult {
	return e.menus.FromURL(ctx, e, src)
}

// Document downloads the page of src, rendering it when the venue or the
// network settings ask for JavaScript.
func (e *Extractor) Document(ctx context.Context, src menu.SourceConfig) (string, error) {
	cookies, err := e.cookies.ExtractCookies(ctx, src.URL)
	if err != nil {
		log.Debug().Err(err).Str("url", src.URL).Msg("browser cookies unavailable")
		cookies = nil
	}

	mode := fetcher.ParseFetchMode(e.config.Network.FetchMode)
	if src.RenderJS {
		mode = fetcher.FetchModeJS
	}

	result, err := e.fetcher.Fetch(ctx, src.URL, fetcher.FetchOptions{
		Mode:         mode,
		Timeout:      e.config.FetchTimeout(),
		UserAgent:    e.config.Network.UserAgent,
		BrowserAgent: e.config.Network.BrowserAgent,
		Cookies:      cookies,
	})
	if err != nil {
		return "", err
	}
	log.Debug().Str("url", result.URL).Int("status", result.StatusCode).Bool("js", result.UsedJS).
		Int("bytes", len(result.HTML)).Msg("menu page fetched")
	return result.HTML, nil
}
