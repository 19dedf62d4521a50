// Package guard enforces the pipeline's safety invariants.
//
// Two checks run before any mutating VCS operation: the protected-branch
// check (fatal on violation: it signals a logic defect, not a transient
// condition) and the forbidden-path check (silently excludes paths that
// are out of bounds, such as VCS internals and credentialed workflows).
package guard

import (
	"fmt"
	"sort"
	"strings"
)

// ProtectedBranchError reports an attempt to operate on a protected
// branch. It aborts the entire run: retrying or skipping would leave a
// defective pipeline free to mutate the mainline.
type ProtectedBranchError struct {
	Branch    string
	Operation string
}

func (e *ProtectedBranchError) Error() string {
	return fmt.Sprintf("refusing %s on protected branch %q", e.Operation, e.Branch)
}

// Guard evaluates safety predicates against an immutable rule set.
type Guard struct {
	protected map[string]struct{}
	prefixes  []string
}

// New builds a Guard from the protected branch names and forbidden path
// prefixes. Prefixes are normalized to slash-terminated form so that
// "dist" cannot accidentally match "distribution/".
func New(protectedBranches, forbiddenPrefixes []string) *Guard {
	protected := make(map[string]struct{}, len(protectedBranches))
	for _, b := range protectedBranches {
		b = strings.TrimSpace(b)
		if b != "" {
			protected[b] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(forbiddenPrefixes))
	for _, p := range forbiddenPrefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		prefixes = append(prefixes, p)
	}
	return &Guard{protected: protected, prefixes: prefixes}
}

// IsProtectedBranch reports whether name is a protected branch.
func (g *Guard) IsProtectedBranch(name string) bool {
	_, ok := g.protected[name]
	return ok
}

// CheckBranch returns a ProtectedBranchError if the named branch must
// not be mutated by the given operation.
func (g *Guard) CheckBranch(name, operation string) error {
	if g.IsProtectedBranch(name) {
		return &ProtectedBranchError{Branch: name, Operation: operation}
	}
	return nil
}

// IsForbiddenPath reports whether path falls under a forbidden prefix.
// Paths are compared in slash form relative to the repo root. A path
// equal to a prefix directory itself (no trailing slash) is forbidden too.
func (g *Guard) IsForbiddenPath(path string) bool {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return false
}

// FilterPaths splits paths into allowed and forbidden, preserving order.
// Forbidden paths are not an anomaly, just out of bounds, so callers
// report them at most as informational detail.
func (g *Guard) FilterPaths(paths []string) (allowed, forbidden []string) {
	for _, p := range paths {
		if g.IsForbiddenPath(p) {
			forbidden = append(forbidden, p)
		} else {
			allowed = append(allowed, p)
		}
	}
	return allowed, forbidden
}

// PromptRules renders the guard's rules as plain-text instructions for
// direct mode, where the agent performs VCS operations itself and the
// rules are communicated rather than enforced in-process.
func (g *Guard) PromptRules() string {
	branches := make([]string, 0, len(g.protected))
	for b := range g.protected {
		branches = append(branches, b)
	}
	sort.Strings(branches)

	var sb strings.Builder
	sb.WriteString("Never check out, commit to, or push these branches:")
	for _, b := range branches {
		sb.WriteString(" " + b)
	}
	sb.WriteString("\nNever modify files under:")
	for _, p := range g.prefixes {
		sb.WriteString(" " + p)
	}
	return sb.String()
}
