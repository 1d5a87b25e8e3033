package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/browser"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, `
[venues.ndegust]
url = "https://ndegust.example/menu"
container = "#daily"
selectors = ["h3.soup", "p.main"]
price_band = "over_20"

[venues.umedveda]
url = "https://umedveda.example"
render_js = true

[extraction]
min_items = 4

[network]
timeout = 5
browser_cookies = "firefox"

[parallel]
max_concurrency = 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	nd := cfg.Venues[menu.VenueNdegust]
	assert.Equal(t, "https://ndegust.example/menu", nd.URL)
	assert.Equal(t, []string{"h3.soup", "p.main"}, nd.Selectors)
	assert.Equal(t, Default().Venues[menu.VenueNdegust].BlockSelectors, nd.BlockSelectors)

	um := cfg.Venues[menu.VenueUMedveda]
	assert.True(t, um.RenderJS)
	assert.Equal(t, Default().Venues[menu.VenueUMedveda].Selectors, um.Selectors)
	assert.Equal(t, "UNDER_10", um.PriceBand)

	assert.Equal(t, 4, cfg.Extraction.MinItems)
	assert.Equal(t, 48, cfg.Extraction.MaxLines)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout())
	assert.Equal(t, browser.BrowserFirefox, cfg.CookieBrowser())
	assert.Equal(t, 1, cfg.Parallel.MaxConcurrency)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2*time.Second, cfg.Backoff())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_CreatesExampleConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, "obed", "config.toml"))

	def := Default()
	assert.Equal(t, def.Extraction, cfg.Extraction)
	assert.Equal(t, def.Network, cfg.Network)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Venues[menu.VenueNdegust], cfg.Venues[menu.VenueNdegust])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OBED_NETWORK_TIMEOUT", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := writeConfig(t, "[llm]\napi_key = \"from-file\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Network.Timeout)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"price band":  "[venues.ndegust]\nprice_band = \"CHEAP\"\n",
		"fetch mode":  "[network]\nfetch_mode = \"telepathy\"\n",
		"concurrency": "[parallel]\nmax_concurrency = -1\n",
		"syntax":      "[network\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestSources(t *testing.T) {
	cfg := Default()
	cfg.Venues[menu.VenueNdegust] = VenueConfig{URL: " https://ndegust.example ", Selectors: []string{"li"}, PriceBand: "under_15"}
	cfg.Venues["elsewhere"] = VenueConfig{URL: "https://elsewhere.example"}

	sources := cfg.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, menu.SourceConfig{
		URL:       "https://ndegust.example",
		Selectors: []string{"li"},
		PriceBand: menu.PriceUnder15,
	}, sources[menu.VenueNdegust])
	assert.Equal(t, menu.PriceUnder10, sources[menu.VenueUMedveda].PriceBand)
	assert.NotContains(t, sources, "elsewhere")
}

func TestFetchTimeoutDefault(t *testing.T) {
	cfg := Default()
	cfg.Network.Timeout = 0
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout())
}
