package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/browser"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/fetcher"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

const (
	appName   = "obed"
	envPrefix = "OBED"
	apiKeyEnv = "OPENAI_API_KEY"
)

type Config struct {
	Venues     map[string]VenueConfig `mapstructure:"venues"`
	Extraction ExtractionConfig       `mapstructure:"extraction"`
	Network    NetworkConfig          `mapstructure:"network"`
	Parallel   ParallelConfig         `mapstructure:"parallel"`
	LLM        LLMConfig              `mapstructure:"llm"`
	Output     OutputConfig           `mapstructure:"output"`
	Logging    LoggingConfig          `mapstructure:"logging"`
}

// VenueConfig tells the extractor where one venue publishes its menu.
type VenueConfig struct {
	URL            string   `mapstructure:"url"`
	Container      string   `mapstructure:"container"`
	Selectors      []string `mapstructure:"selectors"`
	BlockSelectors []string `mapstructure:"block_selectors"`
	PriceBand      string   `mapstructure:"price_band"`
	RenderJS       bool     `mapstructure:"render_js"`
}

type ExtractionConfig struct {
	MinItems            int  `mapstructure:"min_items"`
	MaxLines            int  `mapstructure:"max_lines"`
	ReadabilityFallback bool `mapstructure:"readability_fallback"`
}

type NetworkConfig struct {
	Timeout         int    `mapstructure:"timeout"`
	UserAgent       string `mapstructure:"user_agent"`
	BrowserAgent    string `mapstructure:"browser_agent"`
	FetchMode       string `mapstructure:"fetch_mode"`
	FollowRedirects bool   `mapstructure:"follow_redirects"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
	BrowserCookies  string `mapstructure:"browser_cookies"`
}

type ParallelConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

type LLMConfig struct {
	Model          string  `mapstructure:"model"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	BackoffSeconds float64 `mapstructure:"backoff_seconds"`
}

type OutputConfig struct {
	DataFile string `mapstructure:"data_file"`
	DebugDir string `mapstructure:"debug_dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Default() *Config {
	return &Config{
		Venues: map[string]VenueConfig{
			menu.VenueNdegust: {
				Selectors:      []string{".menu li", ".daily-menu li", ".menu-item"},
				BlockSelectors: []string{".menu", ".daily-menu", "article"},
				PriceBand:      string(menu.PriceUnder15),
			},
			menu.VenueUMedveda: {
				Selectors:      []string{".menu li", ".denne-menu li", ".menu-item"},
				BlockSelectors: []string{".menu", ".denne-menu", "article"},
				PriceBand:      string(menu.PriceUnder10),
			},
		},
		Extraction: ExtractionConfig{
			MinItems: 3,
			MaxLines: 48,
		},
		Network: NetworkConfig{
			Timeout:         20,
			BrowserAgent:    "default",
			FetchMode:       string(fetcher.FetchModeStatic),
			FollowRedirects: true,
			MaxRedirects:    10,
		},
		Parallel: ParallelConfig{
			MaxConcurrency: 2,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			MaxAttempts:    3,
			BackoffSeconds: 2,
		},
		Output: OutputConfig{
			DataFile: "public/data.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/obed/config.toml, falling back to
// ~/.config.
func DefaultConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to find home directory")
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appName, "config.toml"), nil
}

// Load reads configFile, or the default config path when configFile is
// empty. A missing default config is created from the example template. An
// explicitly named file must exist.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return cfg, err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := cfg.CreateExampleConfig(path); err != nil {
				return cfg, err
			}
		}
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return cfg, errors.WithHint(
			errors.Wrapf(err, "failed to read config %s", path),
			"run without --config to create an example config",
		)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to decode config")
	}
	cfg.fillVenueDefaults()

	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.LLM.APIKey = key
	}

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("extraction.min_items", cfg.Extraction.MinItems)
	v.SetDefault("extraction.max_lines", cfg.Extraction.MaxLines)
	v.SetDefault("extraction.readability_fallback", cfg.Extraction.ReadabilityFallback)
	v.SetDefault("network.timeout", cfg.Network.Timeout)
	v.SetDefault("network.user_agent", cfg.Network.UserAgent)
	v.SetDefault("network.browser_agent", cfg.Network.BrowserAgent)
	v.SetDefault("network.fetch_mode", cfg.Network.FetchMode)
	v.SetDefault("network.follow_redirects", cfg.Network.FollowRedirects)
	v.SetDefault("network.max_redirects", cfg.Network.MaxRedirects)
	v.SetDefault("network.browser_cookies", cfg.Network.BrowserCookies)
	v.SetDefault("parallel.max_concurrency", cfg.Parallel.MaxConcurrency)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.max_attempts", cfg.LLM.MaxAttempts)
	v.SetDefault("llm.backoff_seconds", cfg.LLM.BackoffSeconds)
	v.SetDefault("output.data_file", cfg.Output.DataFile)
	v.SetDefault("output.debug_dir", cfg.Output.DebugDir)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// fillVenueDefaults completes the fixed venues field by field, so a config
// that only sets a URL keeps the default selectors.
func (c *Config) fillVenueDefaults() {
	defaults := Default().Venues
	if c.Venues == nil {
		c.Venues = map[string]VenueConfig{}
	}
	for name, def := range defaults {
		vc := c.Venues[name]
		if len(vc.Selectors) == 0 {
			vc.Selectors = def.Selectors
		}
		if len(vc.BlockSelectors) == 0 {
			vc.BlockSelectors = def.BlockSelectors
		}
		if vc.PriceBand == "" {
			vc.PriceBand = def.PriceBand
		}
		c.Venues[name] = vc
	}
}

// Validate rejects values that cannot be used.
func (c *Config) Validate() error {
	names := make([]string, 0, len(c.Venues))
	for name := range c.Venues {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vc := c.Venues[name]
		if vc.PriceBand == "" {
			continue
		}
		if _, ok := menu.ParsePriceBand(vc.PriceBand); !ok {
			return errors.Newf("venues.%s.price_band: unknown price band %q", name, vc.PriceBand)
		}
	}
	switch fetcher.FetchMode(strings.ToLower(strings.TrimSpace(c.Network.FetchMode))) {
	case "", fetcher.FetchModeStatic, fetcher.FetchModeAuto, fetcher.FetchModeJS, "js":
	default:
		return errors.Newf("network.fetch_mode: unknown mode %q", c.Network.FetchMode)
	}
	if c.Network.Timeout < 0 {
		return errors.Newf("network.timeout: must not be negative, got %d", c.Network.Timeout)
	}
	if c.Parallel.MaxConcurrency < 0 {
		return errors.Newf("parallel.max_concurrency: must not be negative, got %d", c.Parallel.MaxConcurrency)
	}
	if c.Extraction.MinItems < 0 || c.Extraction.MaxLines < 0 {
		return errors.New("extraction: min_items and max_lines must not be negative")
	}
	return nil
}

// Sources converts the venue sections for the fixed venues. Unknown venue
// sections are ignored.
func (c *Config) Sources() map[string]menu.SourceConfig {
	out := make(map[string]menu.SourceConfig, len(menu.Venues))
	for _, name := range menu.Venues {
		vc, ok := c.Venues[name]
		if !ok {
			continue
		}
		band, _ := menu.ParsePriceBand(vc.PriceBand)
		if !band.Valid() {
			band = ""
		}
		out[name] = menu.SourceConfig{
			URL:            strings.TrimSpace(vc.URL),
			Container:      strings.TrimSpace(vc.Container),
			Selectors:      vc.Selectors,
			BlockSelectors: vc.BlockSelectors,
			PriceBand:      band,
			RenderJS:       vc.RenderJS,
		}
	}
	return out
}

// FetchTimeout is the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	if c.Network.Timeout <= 0 {
		return fetcher.DefaultTimeout
	}
	return time.Duration(c.Network.Timeout) * time.Second
}

// CookieBrowser is the browser whose cookies are attached to requests.
func (c *Config) CookieBrowser() browser.BrowserType {
	return browser.ParseBrowserType(c.Network.BrowserCookies)
}

// Backoff is the base delay between rate-limited LLM attempts.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.LLM.BackoffSeconds * float64(time.Second))
}

func (c *Config) CreateExampleConfig(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", configDir)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write example config %s", configPath)
	}
	return nil
}

const exampleConfig = `# obed configuration file

# One section per venue. Selectors are tried in order; block selectors name
# elements whose text is split into lines when the selectors find too little.
[venues.ndegust]
url = ""                  # menu page, e.g. "https://example.com/denne-menu"
container = ""            # optional CSS selector narrowing the search
selectors = [".menu li", ".daily-menu li", ".menu-item"]
block_selectors = [".menu", ".daily-menu", "article"]
price_band = "UNDER_15"   # UNDER_10, UNDER_15, OVER_20
render_js = false         # render the page in headless Chrome

[venues.umedveda]
url = ""
container = ""
selectors = [".menu li", ".denne-menu li", ".menu-item"]
block_selectors = [".menu", ".denne-menu", "article"]
price_band = "UNDER_10"
render_js = false

[extraction]
min_items = 3                 # fewer items than this triggers the next fallback
max_lines = 48                # cap on menu lines per venue
readability_fallback = false  # last resort: readability main-content extraction

[network]
timeout = 20              # seconds per request
user_agent = ""           # custom user agent (overrides browser_agent)
browser_agent = "default" # default, auto, chrome, firefox, safari
fetch_mode = "static"     # static, javascript, auto
follow_redirects = true
max_redirects = 10
browser_cookies = ""      # load cookies from: auto, chrome, firefox, safari, zen (empty = off)

[parallel]
max_concurrency = 2       # 1 fetches venues one after another

[llm]
model = "gpt-4o-mini"
base_url = ""             # OpenAI-compatible endpoint (empty = api.openai.com)
api_key = ""              # OPENAI_API_KEY takes precedence
temperature = 0.2
max_attempts = 3
backoff_seconds = 2

[output]
data_file = "public/data.json"
debug_dir = ""            # write trace-<venue>.txt files here (empty = off)

[logging]
level = "info"            # debug, info, warn, error
`
