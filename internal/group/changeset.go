// Package group partitions accepted changes into disjoint change sets.
package group

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/proposal"
)

// ChangeSet is a validated, disjoint, ready-to-publish unit. It is
// created here and consumed exactly once by the publisher; nothing
// mutates it after creation.
type ChangeSet struct {
	BranchName    string
	Category      config.Category
	Title         string
	Files         []string
	CommitMessage string
	ReviewBody    string

	// Patch is the accepted normalized patch body for patch-shaped
	// proposals. Empty for file-list change sets, which are
	// materialized from the working-copy snapshot instead.
	Patch string
}

// maxTitleLen truncates review-request titles the way the forge does.
const maxTitleLen = 72

var titleCaser = cases.Title(language.English)

// CategoryLabel renders a category for human-facing text, e.g.
// "platform-ui" -> "Platform Ui".
func CategoryLabel(c config.Category) string {
	return titleCaser.String(strings.ReplaceAll(string(c), "-", " "))
}

// commitMessage combines category and title, truncated to forge limits.
// Truncation counts runes so a multi-byte title never ends mid-sequence.
func commitMessage(category config.Category, title string) string {
	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return fmt.Sprintf("%s: %s", category, title)
}

// reviewBody renders the structured review-request body from the
// proposal's free-text sections.
func reviewBody(p *proposal.Proposal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Type: %s\n", CategoryLabel(config.Category(p.Category)))
	section(&sb, "Rationale", p.Rationale)
	section(&sb, "Self-proof", p.SelfProof)
	section(&sb, "Self-review", p.SelfReview)
	section(&sb, "Tests", p.Tests)
	sb.WriteString("\nGenerated by autoforge.\n")
	return sb.String()
}

// inferredReviewBody is used when change sets come from the rule table
// rather than an explicit proposal.
func inferredReviewBody(category config.Category, files []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Type: %s\n", CategoryLabel(category))
	section(&sb, "Files", files)
	sb.WriteString("\nGrouped from working-copy changes by the classification table.\n")
	sb.WriteString("\nGenerated by autoforge.\n")
	return sb.String()
}

func section(sb *strings.Builder, heading string, items []string) {
	sb.WriteString("\n" + heading + ":\n")
	if len(items) == 0 {
		sb.WriteString("- (none given)\n")
		return
	}
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}
