package git

import "strings"

// PrunedBranch describes a stale branch removed (or reported) by
// PruneStaleBranches.
type PrunedBranch struct {
	Name   string
	Reason string // "merged" | "no-remote-merged"
}

// PruneStaleBranches removes local branches matching pattern that are
// fully merged into defaultBranch. A pruned branch whose remote
// counterpart is already gone is reported as "no-remote-merged". The
// current branch and the default branch itself are never touched, and
// deletion uses -d so unmerged work survives. dryRun only reports.
func (g *Git) PruneStaleBranches(pattern, defaultBranch string, dryRun bool) ([]PrunedBranch, error) {
	branches, err := g.ListBranches(pattern)
	if err != nil {
		return nil, err
	}
	current, err := g.CurrentBranch()
	if err != nil {
		return nil, err
	}

	merged, err := g.mergedBranches(defaultBranch)
	if err != nil {
		return nil, err
	}

	var pruned []PrunedBranch
	for _, branch := range branches {
		if branch == current || branch == defaultBranch {
			continue
		}

		isMerged := merged[branch]
		hasRemote, err := g.RemoteTrackingBranchExists("origin", branch)
		if err != nil {
			return nil, err
		}

		// A missing remote alone is not proof the work landed; only
		// branches git agrees are merged get deleted (-d enforces it).
		if !isMerged {
			continue
		}
		reason := "merged"
		if !hasRemote {
			reason = "no-remote-merged"
		}

		if !dryRun {
			if err := g.DeleteBranch(branch, false); err != nil {
				return pruned, err
			}
		}
		pruned = append(pruned, PrunedBranch{Name: branch, Reason: reason})
	}
	return pruned, nil
}

// mergedBranches returns the set of local branches fully merged into ref.
func (g *Git) mergedBranches(ref string) (map[string]bool, error) {
	out, err := g.run("branch", "--merged", ref, "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	merged := make(map[string]bool)
	for _, name := range strings.Split(out, "\n") {
		if name != "" {
			merged[name] = true
		}
	}
	return merged, nil
}
