// Package config loads the user's wutag.yml from its XDG config
// directory, grounded on original_source/src/config.rs's
// load/load_default_location pair, translated from serde_yaml to
// gopkg.in/yaml.v3 (present in the retrieved pack via go-git's
// dependency graph) and from dirs::config_dir to github.com/adrg/xdg
// (no example repo does XDG lookups itself; xdg is the standard
// ecosystem library for it).
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	wutag "github.com/wutag-go/wutag"
)

const fileName = "wutag.yml"

const defaultDocument = "---\nmax_depth: 2\n...\n"

// Config is the record spec §6 names: max_depth, base_color, colors,
// ignores, and the display format used by view/list.
type Config struct {
	MaxDepth  int      `yaml:"max_depth"`
	BaseColor string   `yaml:"base_color"`
	Colors    []string `yaml:"colors"`
	Ignores   []string `yaml:"ignores"`
	Format    string   `yaml:"format"`
}

// Default mirrors the original's freshly-initialized config file.
func Default() Config {
	return Config{MaxDepth: 2}
}

// Load reads dir/wutag.yml, creating dir and a default file if either is
// missing, mirroring Config::load's create-on-first-run behavior.
func Load(dir string) (Config, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Config{}, &wutag.Error{Kind: wutag.ErrIO, Op: "config.Load", Inner: err}
	}

	path := filepath.Join(dir, fileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultDocument), 0o644); err != nil {
			return Config{}, &wutag.Error{Kind: wutag.ErrIO, Op: "config.Load", Inner: err}
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &wutag.Error{Kind: wutag.ErrIO, Op: "config.Load", Inner: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "config.Load", Inner: err}
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 2
	}
	return cfg, nil
}

// LoadDefaultLocation loads the config from $XDG_CONFIG_HOME/wutag.
func LoadDefaultLocation() (Config, error) {
	return Load(filepath.Join(xdg.ConfigHome, "wutag"))
}

// RegistryPath resolves the registry file location per spec §6:
// WUTAG_REGISTRY overrides everything; otherwise it is
// $XDG_CACHE_HOME/wutag.registry (or $WUTAG_CACHE_DIR, when set, in
// place of XDG_CACHE_HOME).
func RegistryPath() string {
	if p := os.Getenv("WUTAG_REGISTRY"); p != "" {
		return p
	}
	cacheDir := os.Getenv("WUTAG_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = xdg.CacheHome
	}
	return filepath.Join(cacheDir, "wutag.registry")
}
