// Package proposal defines the change-proposal payload and extracts it
// from raw agent transcripts.
package proposal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
)

// Proposal is one candidate unit of work from the agent payload. It is
// untrusted input: BranchSuffix needs sanitizing and the patch or file
// list must be verified against the tree before anything mutates.
type Proposal struct {
	Title        string   `json:"title"`
	BranchSuffix string   `json:"branch_suffix"`
	Category     string   `json:"category"`
	Rationale    []string `json:"rationale"`
	SelfProof    []string `json:"self_proof"`
	SelfReview   []string `json:"self_review"`
	Tests        []string `json:"tests"`

	// Patch and Files are mutually exclusive proposal shapes: a raw
	// unified diff, or an explicit list of already-modified paths.
	Patch string   `json:"patch"`
	Files []string `json:"files"`
}

// payload is the wire shape the agent is instructed to emit.
type payload struct {
	Proposals []Proposal `json:"proposals"`
}

// Validate rejects proposals that are structurally unusable. It does
// not touch the working tree; apply-checks come later.
func (p *Proposal) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if !config.IsValidCategory(p.Category) {
		return fmt.Errorf("invalid category %q", p.Category)
	}
	hasPatch := strings.TrimSpace(p.Patch) != ""
	hasFiles := len(p.Files) > 0
	if hasPatch == hasFiles {
		if hasPatch {
			return fmt.Errorf("patch and files are mutually exclusive")
		}
		return fmt.Errorf("needs a patch or a files list")
	}
	return nil
}

// HasPatch reports whether this proposal carries a patch body (as
// opposed to an explicit file list).
func (p *Proposal) HasPatch() bool {
	return strings.TrimSpace(p.Patch) != ""
}

// branchCleaner collapses every run of characters outside the safe
// branch alphabet into a single dash.
var branchCleaner = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeBranchSuffix turns an untrusted suggested branch identifier
// into a safe ref component. idx provides the fallback name when
// nothing survives cleaning.
func SanitizeBranchSuffix(name string, idx int) string {
	cleaned := strings.Trim(branchCleaner.ReplaceAllString(name, "-"), "-")
	if cleaned == "" {
		return fmt.Sprintf("auto-pr-%d", idx)
	}
	return cleaned
}
