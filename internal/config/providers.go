package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Providers maps a provider name (e.g. "etherscan") to its settings.
type Providers map[string]Provider

// Provider describes one explorer API and the keys used to call it.
type Provider struct {
	URL  string   `toml:"url" yaml:"url"`
	Keys []string `toml:"keys" yaml:"keys"`
	RPC  *RPC     `toml:"rpc" yaml:"rpc"`
}

// RPC links a provider to the chain it indexes and, optionally, a node for that chain.
type RPC struct {
	ChainID int64  `toml:"chain_id" yaml:"chain_id"`
	URL     string `toml:"url" yaml:"url"`
}

// LoadProviders reads the providers file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as TOML.
func LoadProviders(path string) (Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}

	providers := Providers{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &providers); err != nil {
			return nil, fmt.Errorf("parsing providers file %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), &providers); err != nil {
			return nil, fmt.Errorf("parsing providers file %s: %w", path, err)
		}
	}

	if err := providers.Validate(); err != nil {
		return nil, err
	}
	return providers, nil
}

// Validate checks that every provider can actually be called.
func (p Providers) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("no providers configured")
	}
	for _, name := range p.Names() {
		prov := p[name]
		if prov.URL == "" {
			return fmt.Errorf("provider %s: url is required", name)
		}
		if len(prov.Keys) == 0 {
			return fmt.Errorf("provider %s: at least one API key is required", name)
		}
	}
	return nil
}

// Names returns the provider names in sorted order.
func (p Providers) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// URLs returns provider name → explorer base URL.
func (p Providers) URLs() map[string]string {
	urls := make(map[string]string, len(p))
	for name, prov := range p {
		urls[name] = prov.URL
	}
	return urls
}

// Keys returns provider name → API keys, in configured order.
func (p Providers) Keys() map[string][]string {
	keys := make(map[string][]string, len(p))
	for name, prov := range p {
		keys[name] = prov.Keys
	}
	return keys
}
