package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/config"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/fetcher"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

const menuPage = `<html><body>
	<ul class="menu"><li>Soup: Bean</li><li>Goulash</li><li>Soup: Bean</li></ul>
</body></html>`

func TestExtract_FromServer(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(menuPage))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Network.UserAgent = "obed-test"
	ex := New(cfg)

	result := ex.Extract(context.Background(), menu.SourceConfig{URL: server.URL, Selectors: []string{"ul.menu li"}})
	assert.Equal(t, []string{"Soup: Bean", "Goulash"}, result.Items)
	assert.Equal(t, "obed-test", gotUA)
	assert.Contains(t, result.Trace, "fetch "+server.URL+": ok")
}

func TestExtract_HTTPErrorIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	result := New(config.Default()).Extract(context.Background(), menu.SourceConfig{URL: server.URL, Selectors: []string{"li"}})
	require.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Contains(t, result.Trace, "404")
}

func TestExtract_RenderJSUsesRenderer(t *testing.T) {
	var rendered []string
	renderer := func(_ context.Context, url string, _ fetcher.FetchOptions) (string, error) {
		rendered = append(rendered, url)
		return menuPage, nil
	}

	ex := New(config.Default()).WithRenderer(renderer)
	result := ex.Extract(context.Background(), menu.SourceConfig{
		URL:       "https://umedveda.example/menu",
		Selectors: []string{"ul.menu li"},
		RenderJS:  true,
	})

	assert.Equal(t, []string{"https://umedveda.example/menu"}, rendered)
	assert.Equal(t, []string{"Soup: Bean", "Goulash"}, result.Items)
}

func TestExtract_NoRedirectsWhenDisabled(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(menuPage))
	}))
	defer target.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirect.Close()

	cfg := config.Default()
	cfg.Network.FollowRedirects = false
	result := New(cfg).Extract(context.Background(), menu.SourceConfig{URL: redirect.URL, Selectors: []string{"ul.menu li"}})
	assert.Empty(t, result.Items)
	assert.True(t, strings.Contains(result.Trace, "302"), result.Trace)

	cfg.Network.FollowRedirects = true
	result = New(cfg).Extract(context.Background(), menu.SourceConfig{URL: redirect.URL, Selectors: []string{"ul.menu li"}})
	assert.Equal(t, []string{"Soup: Bean", "Goulash"}, result.Items)
}
