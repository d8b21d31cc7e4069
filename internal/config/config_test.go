package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFileOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wutag")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", cfg.MaxDepth)
	}

	path := filepath.Join(dir, fileName)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected Load to create %s: %v", path, err)
	}
}

func TestLoadReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)
	doc := "max_depth: 5\nbase_color: blue\ncolors:\n  - red\n  - green\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d, want 5", cfg.MaxDepth)
	}
	if cfg.BaseColor != "blue" {
		t.Errorf("BaseColor = %q, want blue", cfg.BaseColor)
	}
	if len(cfg.Colors) != 2 {
		t.Errorf("Colors = %v, want 2 entries", cfg.Colors)
	}
}

func TestDefaultHasMaxDepthTwo(t *testing.T) {
	if Default().MaxDepth != 2 {
		t.Errorf("Default().MaxDepth = %d, want 2", Default().MaxDepth)
	}
}

func TestRegistryPathPrefersWutagRegistryEnv(t *testing.T) {
	t.Setenv("WUTAG_REGISTRY", "/tmp/explicit.registry")
	t.Setenv("WUTAG_CACHE_DIR", "/tmp/should-be-ignored")

	got := RegistryPath()
	if got != "/tmp/explicit.registry" {
		t.Errorf("RegistryPath() = %q, want the WUTAG_REGISTRY override", got)
	}
}

func TestRegistryPathFallsBackToWutagCacheDir(t *testing.T) {
	t.Setenv("WUTAG_REGISTRY", "")
	t.Setenv("WUTAG_CACHE_DIR", "/tmp/custom-cache")

	want := filepath.Join("/tmp/custom-cache", "wutag.registry")
	if got := RegistryPath(); got != want {
		t.Errorf("RegistryPath() = %q, want %q", got, want)
	}
}
