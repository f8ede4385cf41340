package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestValidateContentRoot_DangerousRoots(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"filesystem root", "/"},
		{"home root", "/home"},
		{"users root", "/Users"},
		{"tmp root", "/tmp"},
		{"etc root", "/etc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := validateContentRoot(tt.path); result != "" {
				t.Errorf("expected empty for dangerous path %q, got %q", tt.path, result)
			}
		})
	}
}

func TestValidateContentRoot_AllowsReasonable(t *testing.T) {
	dir := t.TempDir()
	if result := validateContentRoot(dir); result == "" {
		t.Errorf("expected valid result for reasonable path %q, got empty", dir)
	}
}

func TestValidateContentRoot_SymlinkToDangerousRoot(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "evil-link")
	if err := os.Symlink("/etc", link); err != nil {
		t.Skip("Cannot create symlinks on this platform")
	}
	if result := validateContentRoot(link); result != "" {
		t.Errorf("expected empty for symlink to /etc, got %q", result)
	}
}

func TestGenerateConfig_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateConfig(dir, "lessons"); err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}

	cfgPath := ConfigFilePath(dir)
	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %o", perm)
	}

	// The generated file must round-trip with no unknown keys.
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(cfgPath, cfg)
	if err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		t.Errorf("generated config has unknown keys: %v", undecoded)
	}
	if cfg.Content.Root != "lessons" {
		t.Errorf("content root = %q, want lessons", cfg.Content.Root)
	}
}

func TestShowConfig_IncludesSections(t *testing.T) {
	isolate(t)
	ContentOverride = t.TempDir()

	out := ShowConfig()
	for _, want := range []string{"[content]", "[web]", "[guard]", "Effective lessons configuration"} {
		if !strings.Contains(out, want) {
			t.Errorf("ShowConfig output missing %q:\n%s", want, out)
		}
	}
}
