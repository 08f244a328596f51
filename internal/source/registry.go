package source

import (
	"fmt"
	"sort"
	"time"
)

// Config carries everything a concrete collector needs from configuration.
type Config struct {
	Name string `yaml:"name"`

	API struct {
		BaseURL  string        `yaml:"base_url"`
		ListPath string        `yaml:"list_path"`
		DocPath  string        `yaml:"doc_path"` // contains a {id} placeholder
		Timeout  time.Duration `yaml:"timeout"`

		// Token auth with fallback to an anonymous open-data user agent.
		Token             string `yaml:"token"`
		OpenDataUserAgent string `yaml:"open_data_user_agent"`

		MaxPages int `yaml:"max_pages"`

		RateLimit struct {
			MinPause time.Duration `yaml:"min_pause"`
			MaxPause time.Duration `yaml:"max_pause"`
		} `yaml:"rate_limit"`
	} `yaml:"api"`

	Dictionaries []DictionaryConfig `yaml:"dictionaries"`
}

// DictionaryConfig names one reference dictionary endpoint of a source.
type DictionaryConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Factory builds a collector from its configuration and the shared limiter.
type Factory func(cfg Config, limiter *Limiter) (Collector, error)

var registry = map[string]Factory{}

// Register adds a collector factory under a source name. Called from the
// init function of each concrete source.
func Register(name string, factory Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("source: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// New builds the collector selected by cfg.Name.
func New(cfg Config, limiter *Limiter) (Collector, error) {
	factory, ok := registry[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("source: unknown source %q (available: %v)", cfg.Name, names())
	}
	return factory(cfg, limiter)
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
