package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// AllTitles entries apply to every title.
const AllTitles = "ALL"

type Plugin struct {
	Path  string `toml:"path"`
	Flags uint32 `toml:"flags"`
}

type Title struct {
	ID     string   `toml:"id"`
	Plugin []Plugin `toml:"plugin"`
}

type Config struct {
	Title []Title `toml:"title"`
}

func Load(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// PluginsFor returns the plugins to load for a title, AllTitles entries first.
func (c *Config) PluginsFor(titleID string) []Plugin {
	var out []Plugin
	for _, t := range c.Title {
		if t.ID == AllTitles {
			out = append(out, t.Plugin...)
		}
	}
	for _, t := range c.Title {
		if t.ID == titleID {
			out = append(out, t.Plugin...)
		}
	}
	return out
}
