// Package config loads autoforge run configuration.
//
// Configuration lives in autoforge.toml at the repository root. Every
// field has a default, so a missing file yields a fully usable config.
// The loaded Config is immutable: it is built once and threaded through
// component constructors, never mutated mid-run.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is the config file looked up at the repo root.
const DefaultFileName = "autoforge.toml"

// Category is a change kind a proposal may declare.
type Category string

const (
	CategoryRefactor   Category = "refactor"
	CategoryPerf       Category = "perf"
	CategoryTests      Category = "tests"
	CategoryDocs       Category = "docs"
	CategoryCI         Category = "ci"
	CategoryPlatformUI Category = "platform-ui"
	CategoryPackaging  Category = "packaging"
	CategoryBugfix     Category = "bugfix"
)

// Categories returns all allowed categories in sorted order.
func Categories() []Category {
	cats := []Category{
		CategoryRefactor, CategoryPerf, CategoryTests, CategoryDocs,
		CategoryCI, CategoryPlatformUI, CategoryPackaging, CategoryBugfix,
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// IsValidCategory checks whether a string names an allowed category.
func IsValidCategory(s string) bool {
	switch Category(s) {
	case CategoryRefactor, CategoryPerf, CategoryTests, CategoryDocs,
		CategoryCI, CategoryPlatformUI, CategoryPackaging, CategoryBugfix:
		return true
	default:
		return false
	}
}

// AgentConfig describes how to invoke the external generative agent.
// The agent is an opaque command: prompt in, raw transcript out.
type AgentConfig struct {
	// Command is the agent CLI binary.
	Command string `toml:"command"`

	// Args are passed before the prompt flag.
	Args []string `toml:"args"`

	// Model is passed via -m when non-empty.
	Model string `toml:"model"`

	// PromptFlag is the flag that carries the prompt text (default "-p").
	PromptFlag string `toml:"prompt_flag"`
}

// Rule is one entry of the file-classification table. Prefix and Suffix
// are both optional; a rule with neither never matches.
type Rule struct {
	Prefix   string `toml:"prefix"`
	Suffix   string `toml:"suffix"`
	Category string `toml:"category"`
}

// Config is the full, immutable run configuration.
type Config struct {
	// ProtectedBranches must never be checked out, committed to, or
	// pushed by the pipeline. The first entry is the base branch for
	// published review requests.
	ProtectedBranches []string

	// ForbiddenPrefixes are path prefixes excluded from every change set.
	ForbiddenPrefixes []string

	// BranchPrefix namespaces every published branch (e.g. "autoforge/").
	BranchPrefix string

	// Remote is the git remote published branches are pushed to.
	Remote string

	// MaxProposals caps how many proposals one run will accept.
	MaxProposals int

	// MaxFiles and MaxLines bound the size of a single change set.
	// A change set exceeding either is dropped. Zero disables the bound.
	MaxFiles int
	MaxLines int

	// MaxRepairAttempts bounds the repair loop per proposal.
	MaxRepairAttempts int

	// CallTimeout bounds each individual agent invocation.
	CallTimeout time.Duration

	// OuterTimeout is the kill switch on the agent process itself,
	// applied on top of CallTimeout.
	OuterTimeout time.Duration

	// RunTimeout bounds the whole pipeline run. Zero means unbounded.
	RunTimeout time.Duration

	// Grouping selects the change-grouping strategy: "explicit" trusts
	// each proposal's file list, "inferred" classifies the working-copy
	// diff by the rule table.
	Grouping string

	// DirectMode hands VCS operations to the agent itself; safety rules
	// are rendered into the prompt instead of enforced in-process.
	DirectMode bool

	// PromptExtra is appended verbatim to every task prompt, for
	// repo-specific guidance the defaults cannot know about.
	PromptExtra string

	// Rules is the ordered classification table, first match wins.
	// Paths matching no rule fall back to the refactor category.
	Rules []Rule

	// Agent is the external agent invocation config.
	Agent AgentConfig
}

// ProtectedBranch returns the primary protected branch (the mainline).
func (c *Config) ProtectedBranch() string {
	if len(c.ProtectedBranches) == 0 {
		return "main"
	}
	return c.ProtectedBranches[0]
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ProtectedBranches: []string{"main", "master"},
		ForbiddenPrefixes: []string{
			".git/",
			".github/workflows/",
			"target/",
			"dist/",
			"build/",
			"node_modules/",
		},
		BranchPrefix:      "autoforge/",
		Remote:            "origin",
		MaxProposals:      10,
		MaxFiles:          8,
		MaxLines:          200,
		MaxRepairAttempts: 1,
		CallTimeout:       30 * time.Minute,
		OuterTimeout:      2 * time.Minute,
		RunTimeout:        0,
		Grouping:          "explicit",
		Rules:             defaultRules(),
		Agent: AgentConfig{
			Command:    "iflow",
			PromptFlag: "-p",
		},
	}
}

// defaultRules mirrors the built-in classification table. Order matters:
// the first matching rule wins.
func defaultRules() []Rule {
	return []Rule{
		{Prefix: "app/", Category: string(CategoryPlatformUI)},
		{Prefix: "android/", Category: string(CategoryPlatformUI)},
		{Prefix: ".github/", Category: string(CategoryCI)},
		{Prefix: ".ci/", Category: string(CategoryCI)},
		{Prefix: "packaging/", Category: string(CategoryPackaging)},
		{Prefix: "scripts/deploy", Category: string(CategoryPackaging)},
		{Suffix: ".spec", Category: string(CategoryPackaging)},
		{Prefix: "tests/", Category: string(CategoryTests)},
		{Suffix: "_test.go", Category: string(CategoryTests)},
		{Suffix: "_test.rs", Category: string(CategoryTests)},
		{Suffix: "_test.py", Category: string(CategoryTests)},
		{Prefix: "docs/", Category: string(CategoryDocs)},
		{Suffix: ".md", Category: string(CategoryDocs)},
		{Suffix: ".rst", Category: string(CategoryDocs)},
	}
}

// fileConfig is the raw TOML shape. Pointer fields distinguish "absent"
// from zero so file values overlay defaults without clobbering them.
type fileConfig struct {
	ProtectedBranches *[]string `toml:"protected_branches"`
	ForbiddenPrefixes *[]string `toml:"forbidden_prefixes"`
	BranchPrefix      *string   `toml:"branch_prefix"`
	Remote            *string   `toml:"remote"`
	MaxProposals      *int      `toml:"max_proposals"`
	MaxFiles          *int      `toml:"max_files"`
	MaxLines          *int      `toml:"max_lines"`
	MaxRepairAttempts *int      `toml:"max_repair_attempts"`
	CallTimeout       *string   `toml:"call_timeout"`
	OuterTimeout      *string   `toml:"outer_timeout"`
	RunTimeout        *string   `toml:"run_timeout"`
	Grouping          *string   `toml:"grouping"`
	DirectMode        *bool     `toml:"direct_mode"`
	PromptExtra       *string   `toml:"prompt_extra"`

	Rules []Rule      `toml:"rules"`
	Agent AgentConfig `toml:"agent"`
}

// Load reads path and overlays it onto the defaults. A missing file is
// not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if raw.ProtectedBranches != nil {
		cfg.ProtectedBranches = *raw.ProtectedBranches
	}
	if raw.ForbiddenPrefixes != nil {
		cfg.ForbiddenPrefixes = *raw.ForbiddenPrefixes
	}
	if raw.BranchPrefix != nil {
		cfg.BranchPrefix = *raw.BranchPrefix
	}
	if raw.Remote != nil {
		cfg.Remote = *raw.Remote
	}
	if raw.MaxProposals != nil {
		cfg.MaxProposals = *raw.MaxProposals
	}
	if raw.MaxFiles != nil {
		cfg.MaxFiles = *raw.MaxFiles
	}
	if raw.MaxLines != nil {
		cfg.MaxLines = *raw.MaxLines
	}
	if raw.MaxRepairAttempts != nil {
		cfg.MaxRepairAttempts = *raw.MaxRepairAttempts
	}
	if raw.Grouping != nil {
		cfg.Grouping = *raw.Grouping
	}
	if raw.DirectMode != nil {
		cfg.DirectMode = *raw.DirectMode
	}
	if raw.PromptExtra != nil {
		cfg.PromptExtra = *raw.PromptExtra
	}
	if len(raw.Rules) > 0 {
		cfg.Rules = raw.Rules
	}
	if raw.Agent.Command != "" {
		cfg.Agent.Command = raw.Agent.Command
	}
	if len(raw.Agent.Args) > 0 {
		cfg.Agent.Args = raw.Agent.Args
	}
	if raw.Agent.Model != "" {
		cfg.Agent.Model = raw.Agent.Model
	}
	if raw.Agent.PromptFlag != "" {
		cfg.Agent.PromptFlag = raw.Agent.PromptFlag
	}

	for name, field := range map[string]struct {
		raw *string
		dst *time.Duration
	}{
		"call_timeout":  {raw.CallTimeout, &cfg.CallTimeout},
		"outer_timeout": {raw.OuterTimeout, &cfg.OuterTimeout},
		"run_timeout":   {raw.RunTimeout, &cfg.RunTimeout},
	} {
		if field.raw == nil {
			continue
		}
		dur, err := time.ParseDuration(*field.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, *field.raw, err)
		}
		*field.dst = dur
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs that would make the run unsound.
func (c *Config) Validate() error {
	if len(c.ProtectedBranches) == 0 {
		return fmt.Errorf("protected_branches must not be empty")
	}
	for _, b := range c.ProtectedBranches {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("protected_branches contains an empty name")
		}
	}
	if c.BranchPrefix == "" {
		return fmt.Errorf("branch_prefix must not be empty")
	}
	for _, p := range c.ProtectedBranches {
		if strings.HasPrefix(c.BranchPrefix, p) {
			return fmt.Errorf("branch_prefix %q collides with protected branch %q", c.BranchPrefix, p)
		}
	}
	if c.MaxProposals <= 0 {
		return fmt.Errorf("max_proposals must be positive, got %d", c.MaxProposals)
	}
	if c.MaxRepairAttempts < 0 {
		return fmt.Errorf("max_repair_attempts must not be negative, got %d", c.MaxRepairAttempts)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %v", c.CallTimeout)
	}
	switch c.Grouping {
	case "explicit", "inferred":
	default:
		return fmt.Errorf("invalid grouping %q (want explicit or inferred)", c.Grouping)
	}
	for i, r := range c.Rules {
		if r.Prefix == "" && r.Suffix == "" {
			return fmt.Errorf("rule %d has neither prefix nor suffix", i)
		}
		if !IsValidCategory(r.Category) {
			return fmt.Errorf("rule %d has invalid category %q", i, r.Category)
		}
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("agent.command must not be empty")
	}
	return nil
}
