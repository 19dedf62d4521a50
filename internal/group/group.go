package group

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/proposal"
)

// Drop reasons. Dropped change sets never abort the run; the caller
// reports them and moves on.
var (
	ErrOverlap       = errors.New("files already claimed by an earlier change set")
	ErrNotModified   = errors.New("file is not modified in the working copy")
	ErrNoFiles       = errors.New("no publishable files remain")
	ErrForbiddenPath = errors.New("patch touches a forbidden path")
	ErrTooManyFiles  = errors.New("file count exceeds the per-change-set limit")
	ErrTooManyLines  = errors.New("changed line count exceeds the per-change-set limit")
)

// LineCountFunc measures the changed-line footprint of a change set.
// A nil func disables the line bound, which grouping-only callers
// (plan, tests) use since the measurement needs a git tree.
type LineCountFunc func(cs *ChangeSet) (int, error)

// Accepted pairs a structurally valid proposal with its verified
// content: the normalized accepted patch for patch-shaped proposals,
// and the definitive file list for both shapes.
type Accepted struct {
	Proposal *proposal.Proposal
	Patch    string
	Files    []string
}

// Dropped records a change set that was rejected during grouping,
// with the title it would have published under.
type Dropped struct {
	Title  string
	Reason error
}

// Grouper builds disjoint change sets from accepted proposals or,
// when no proposals exist, from the working copy via the rule table.
type Grouper struct {
	cfg       *config.Config
	guard     *guard.Guard
	lineCount LineCountFunc
}

func New(cfg *config.Config, g *guard.Guard, lineCount LineCountFunc) *Grouper {
	return &Grouper{cfg: cfg, guard: g, lineCount: lineCount}
}

// claims tracks file ownership across the change sets of one run.
// The first change set to name a file owns it; later claimants lose.
type claims struct {
	owner map[string]string
}

func newClaims() *claims {
	return &claims{owner: make(map[string]string)}
}

// take claims every file for branch, or reports the first conflict
// without claiming anything.
func (c *claims) take(files []string, branch string) error {
	for _, f := range files {
		if prev, ok := c.owner[f]; ok {
			return fmt.Errorf("%w: %s (owned by %s)", ErrOverlap, f, prev)
		}
	}
	for _, f := range files {
		c.owner[f] = branch
	}
	return nil
}

// FromProposals builds one change set per accepted proposal, in payload
// order. Forbidden paths are silently excluded from file lists before
// any other check; a patch that touches one drops its whole proposal.
// runID disambiguates branch names across runs.
func (g *Grouper) FromProposals(accepted []Accepted, modified []string, runID string) ([]*ChangeSet, []Dropped) {
	modSet := make(map[string]bool, len(modified))
	for _, m := range modified {
		modSet[m] = true
	}

	var (
		sets    []*ChangeSet
		dropped []Dropped
		claimed = newClaims()
	)
	for i, a := range accepted {
		p := a.Proposal
		files, excluded := g.guard.FilterPaths(a.Files)
		if p.HasPatch() && len(excluded) > 0 {
			// A patch applies whole. Forbidden hunks cannot be trimmed
			// the way a file list can, so the proposal is out.
			dropped = append(dropped, Dropped{
				Title:  p.Title,
				Reason: fmt.Errorf("%w: %s", ErrForbiddenPath, strings.Join(excluded, ", ")),
			})
			continue
		}
		if len(files) == 0 {
			dropped = append(dropped, Dropped{Title: p.Title, Reason: ErrNoFiles})
			continue
		}
		if !p.HasPatch() {
			if err := requireModified(files, modSet); err != nil {
				dropped = append(dropped, Dropped{Title: p.Title, Reason: err})
				continue
			}
		}

		cat := config.Category(p.Category)
		cs := &ChangeSet{
			BranchName:    g.branchName(proposal.SanitizeBranchSuffix(p.BranchSuffix, i), runID),
			Category:      cat,
			Title:         strings.TrimSpace(p.Title),
			Files:         files,
			CommitMessage: commitMessage(cat, p.Title),
			ReviewBody:    reviewBody(p),
			Patch:         a.Patch,
		}
		if err := g.withinBounds(cs); err != nil {
			dropped = append(dropped, Dropped{Title: p.Title, Reason: err})
			continue
		}
		if err := claimed.take(files, cs.BranchName); err != nil {
			dropped = append(dropped, Dropped{Title: p.Title, Reason: err})
			continue
		}
		sets = append(sets, cs)
	}
	return sets, dropped
}

// FromRuleTable is the fallback strategy: classify every modified path
// through the rule table and emit one change set per category. Paths
// within a category never overlap by construction, so the result is
// disjoint without a claims pass.
func (g *Grouper) FromRuleTable(modified []string, runID string) ([]*ChangeSet, []Dropped) {
	allowed, _ := g.guard.FilterPaths(modified)

	byCategory := make(map[config.Category][]string)
	for _, path := range allowed {
		cat := g.Classify(path)
		byCategory[cat] = append(byCategory[cat], path)
	}

	var sets []*ChangeSet
	var dropped []Dropped
	// Category order from the config table keeps output stable.
	for _, cat := range config.Categories() {
		files := byCategory[cat]
		if len(files) == 0 {
			continue
		}
		sort.Strings(files)
		title := fmt.Sprintf("%s updates from working copy", CategoryLabel(cat))
		cs := &ChangeSet{
			BranchName:    g.branchName(string(cat), runID),
			Category:      cat,
			Title:         title,
			Files:         files,
			CommitMessage: commitMessage(cat, title),
			ReviewBody:    inferredReviewBody(cat, files),
		}
		if err := g.withinBounds(cs); err != nil {
			dropped = append(dropped, Dropped{Title: title, Reason: err})
			continue
		}
		sets = append(sets, cs)
	}
	return sets, dropped
}

// Classify maps a path to a category via the first matching rule.
// Paths nothing matches fall back to refactor.
func (g *Grouper) Classify(path string) config.Category {
	for _, r := range g.cfg.Rules {
		if r.Prefix != "" && !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		if r.Suffix != "" && !strings.HasSuffix(path, r.Suffix) {
			continue
		}
		return config.Category(r.Category)
	}
	return config.CategoryRefactor
}

// branchName builds the full ref name for a change set. The run ID
// keeps branches from colliding with earlier runs of the same repo.
func (g *Grouper) branchName(suffix, runID string) string {
	name := g.cfg.BranchPrefix + suffix
	if runID != "" {
		name += "-" + runID
	}
	return name
}

func (g *Grouper) withinBounds(cs *ChangeSet) error {
	if g.cfg.MaxFiles > 0 && len(cs.Files) > g.cfg.MaxFiles {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(cs.Files), g.cfg.MaxFiles)
	}
	if g.lineCount == nil || g.cfg.MaxLines <= 0 {
		return nil
	}
	lines, err := g.lineCount(cs)
	if err != nil {
		return fmt.Errorf("measuring change set: %w", err)
	}
	if lines > g.cfg.MaxLines {
		return fmt.Errorf("%w: %d > %d", ErrTooManyLines, lines, g.cfg.MaxLines)
	}
	return nil
}

func requireModified(files []string, modified map[string]bool) error {
	for _, f := range files {
		if !modified[f] {
			return fmt.Errorf("%w: %s", ErrNotModified, f)
		}
	}
	return nil
}
