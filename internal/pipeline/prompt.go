package pipeline

import (
	"fmt"
	"strings"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/proposal"
)

// taskPrompt wraps the operator's task with the payload contract the
// extractor expects: a fenced JSON block listing proposals, each with
// a unified diff against the current HEAD.
func taskPrompt(cfg *config.Config, task string) string {
	var cats []string
	for _, c := range config.Categories() {
		cats = append(cats, string(c))
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(task))
	sb.WriteString("\n\n")
	sb.WriteString("Do not run any git or gh commands. Instead, when you are done, print your proposed changes as a single JSON document between the literal lines ")
	sb.WriteString(proposal.BeginMarker)
	sb.WriteString(" and ")
	sb.WriteString(proposal.EndMarker)
	sb.WriteString(", shaped like:\n\n")
	sb.WriteString(proposal.BeginMarker + `
{"proposals": [
  {"title": "...", "branch_suffix": "short-kebab-name", "category": "...",
   "rationale": ["..."], "self_proof": ["..."], "self_review": ["..."], "tests": ["..."],
   "patch": "diff --git a/... (a unified diff against the current HEAD)"}
]}
` + proposal.EndMarker + "\n\n")
	fmt.Fprintf(&sb, "Allowed categories: %s.\n", strings.Join(cats, ", "))
	fmt.Fprintf(&sb, "Propose at most %d independent changes. Each must touch at most %d files and at most %d changed lines.\n",
		cfg.MaxProposals, cfg.MaxFiles, cfg.MaxLines)
	if len(cfg.ForbiddenPrefixes) > 0 {
		fmt.Fprintf(&sb, "Never touch files under: %s.\n", strings.Join(cfg.ForbiddenPrefixes, ", "))
	}
	sb.WriteString("Patches from different proposals must not touch the same file.\n")
	if cfg.PromptExtra != "" {
		sb.WriteString("\n" + strings.TrimSpace(cfg.PromptExtra) + "\n")
	}
	return sb.String()
}

// directPrompt is used in direct mode, where the agent drives git and
// gh itself and the safety rules travel in the prompt.
func directPrompt(cfg *config.Config, g *guard.Guard, task string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(task))
	sb.WriteString("\n\n")
	sb.WriteString("Split your work into small independent branches and open one pull request per branch using the gh CLI.\n")
	fmt.Fprintf(&sb, "Name every branch %s<short-kebab-name>. Open at most %d pull requests, each touching at most %d files.\n",
		cfg.BranchPrefix, cfg.MaxProposals, cfg.MaxFiles)
	sb.WriteString(g.PromptRules())
	sb.WriteString("\n")
	if cfg.PromptExtra != "" {
		sb.WriteString("\n" + strings.TrimSpace(cfg.PromptExtra) + "\n")
	}
	return sb.String()
}
