package fetcher

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

type UserAgentType string

const (
	UserAgentDefault UserAgentType = "default"
	UserAgentAuto    UserAgentType = "auto"
	UserAgentChrome  UserAgentType = "chrome"
	UserAgentFirefox UserAgentType = "firefox"
	UserAgentSafari  UserAgentType = "safari"
)

// DefaultUserAgent is sent when no browser agent is configured. Menu pages
// are fetched once a day, so a single stable desktop identity is enough.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var userAgents = map[UserAgentType][]string{
	UserAgentChrome: {
		DefaultUserAgent,
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	},
	UserAgentFirefox: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	},
	UserAgentSafari: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
	},
}

// allAgents is the flattened pool in a fixed order so seeded selection is
// reproducible.
var allAgents = func() []string {
	var out []string
	for _, t := range []UserAgentType{UserAgentChrome, UserAgentFirefox, UserAgentSafari} {
		out = append(out, userAgents[t]...)
	}
	return out
}()

// UserAgentSelector picks User-Agent strings. It is safe for concurrent use.
type UserAgentSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewUserAgentSelector() *UserAgentSelector {
	return NewSeededUserAgentSelector(time.Now().UnixNano())
}

func NewSeededUserAgentSelector(seed int64) *UserAgentSelector {
	return &UserAgentSelector{rng: rand.New(rand.NewSource(seed))}
}

// GetUserAgent resolves uaType to a User-Agent string.
// Empty or "default" gives DefaultUserAgent, "auto" picks from every known
// browser, a browser name picks from that browser, and anything else is
// treated as a literal User-Agent.
func (uas *UserAgentSelector) GetUserAgent(uaType string) string {
	trimmed := strings.TrimSpace(uaType)
	switch UserAgentType(strings.ToLower(trimmed)) {
	case "", UserAgentDefault:
		return DefaultUserAgent
	case UserAgentAuto:
		return uas.pick(allAgents)
	case UserAgentChrome, UserAgentFirefox, UserAgentSafari:
		return uas.pick(userAgents[UserAgentType(strings.ToLower(trimmed))])
	default:
		return trimmed
	}
}

func (uas *UserAgentSelector) pick(pool []string) string {
	if len(pool) == 0 {
		return DefaultUserAgent
	}
	uas.mu.Lock()
	defer uas.mu.Unlock()
	return pool[uas.rng.Intn(len(pool))]
}
