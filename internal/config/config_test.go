package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "autoforge.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxProposals != 10 {
		t.Errorf("MaxProposals = %d, want 10", cfg.MaxProposals)
	}
	if cfg.ProtectedBranch() != "main" {
		t.Errorf("ProtectedBranch = %q, want main", cfg.ProtectedBranch())
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autoforge.toml")
	content := `
max_proposals = 3
max_files = 4
call_timeout = "5m"
grouping = "inferred"
protected_branches = ["release"]

[[rules]]
prefix = "web/"
category = "platform-ui"

[agent]
command = "mybot"
model = "test-model"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxProposals != 3 {
		t.Errorf("MaxProposals = %d, want 3", cfg.MaxProposals)
	}
	if cfg.MaxFiles != 4 {
		t.Errorf("MaxFiles = %d, want 4", cfg.MaxFiles)
	}
	if cfg.CallTimeout != 5*time.Minute {
		t.Errorf("CallTimeout = %v, want 5m", cfg.CallTimeout)
	}
	if cfg.Grouping != "inferred" {
		t.Errorf("Grouping = %q, want inferred", cfg.Grouping)
	}
	if cfg.ProtectedBranch() != "release" {
		t.Errorf("ProtectedBranch = %q, want release", cfg.ProtectedBranch())
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Prefix != "web/" {
		t.Errorf("Rules = %+v, want single web/ rule", cfg.Rules)
	}
	if cfg.Agent.Command != "mybot" || cfg.Agent.Model != "test-model" {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	// Unset fields keep defaults.
	if cfg.MaxLines != 200 {
		t.Errorf("MaxLines = %d, want default 200", cfg.MaxLines)
	}
	if cfg.Remote != "origin" {
		t.Errorf("Remote = %q, want origin", cfg.Remote)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad duration", `call_timeout = "soon"`},
		{"bad grouping", `grouping = "clever"`},
		{"bad rule category", "[[rules]]\nprefix = \"x/\"\ncategory = \"misc\""},
		{"empty rule", "[[rules]]\ncategory = \"docs\""},
		{"zero proposals", `max_proposals = 0`},
		{"no protected", `protected_branches = []`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "autoforge.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestIsValidCategory(t *testing.T) {
	for _, c := range Categories() {
		if !IsValidCategory(string(c)) {
			t.Errorf("category %q should be valid", c)
		}
	}
	for _, s := range []string{"", "misc", "Refactor", "android-ui"} {
		if IsValidCategory(s) {
			t.Errorf("category %q should be invalid", s)
		}
	}
}
