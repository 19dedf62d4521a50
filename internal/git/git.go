// Package git wraps the git CLI for pipeline use.
//
// All operations shell out to git in a fixed working directory. Errors
// carry the raw stderr so callers (and repair prompts) see git's own
// diagnostics instead of a paraphrase.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GitError is returned when a git command exits non-zero.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error { return e.Err }

// Git runs git commands in a fixed working directory.
type Git struct {
	workDir string
}

// NewGit creates a Git wrapper rooted at dir.
func NewGit(dir string) *Git {
	return &Git{workDir: dir}
}

// WorkDir returns the wrapper's working directory.
func (g *Git) WorkDir() string { return g.workDir }

// run executes git with args and returns trimmed stdout.
func (g *Git) run(args ...string) (string, error) {
	return g.runInput("", args...)
}

// runInput executes git with args, feeding input to stdin when non-empty.
func (g *Git) runInput(input string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether the working directory is inside a git repo.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("branch", "--show-current")
}

// Rev resolves a ref to its full commit hash.
func (g *Git) Rev(ref string) (string, error) {
	return g.run("rev-parse", ref)
}

// Status describes the working tree state.
type Status struct {
	Clean     bool
	Modified  []string
	Untracked []string
}

// Status parses `git status --porcelain`.
func (g *Git) Status() (*Status, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	st := &Status{Clean: out == ""}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Renames are reported as "old -> new"; the new path is what
		// the tree now contains.
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		if strings.HasPrefix(line, "??") {
			st.Untracked = append(st.Untracked, path)
		} else {
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

// ModifiedPaths returns every path the working tree differs on,
// tracked and untracked alike, in porcelain order.
func (g *Git) ModifiedPaths() ([]string, error) {
	st, err := g.Status()
	if err != nil {
		return nil, err
	}
	return append(append([]string{}, st.Modified...), st.Untracked...), nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (g *Git) HasUncommittedChanges() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return !st.Clean, nil
}

// Add stages the given paths, or everything with AddAll.
func (g *Git) Add(paths ...string) error {
	_, err := g.run(append([]string{"add", "--"}, paths...)...)
	return err
}

// AddAll stages all changes including deletions and untracked files.
func (g *Git) AddAll() error {
	_, err := g.run("add", "-A")
	return err
}

// Commit records staged changes with the given message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// Checkout switches to an existing branch.
func (g *Git) Checkout(branch string) error {
	_, err := g.run("checkout", branch)
	return err
}

// CreateBranchFrom creates and checks out a branch at the given ref.
// Uncommitted working-copy edits ride along onto the new branch.
func (g *Git) CreateBranchFrom(name, ref string) error {
	_, err := g.run("checkout", "-b", name, ref)
	return err
}

// DeleteBranch deletes a local branch. force uses -D.
func (g *Git) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run("branch", flag, name)
	return err
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(name string) (bool, error) {
	return g.refExists("refs/heads/" + name)
}

// RemoteTrackingBranchExists reports whether remote/<branch> exists in
// the local tracking refs.
func (g *Git) RemoteTrackingBranchExists(remote, branch string) (bool, error) {
	return g.refExists("refs/remotes/" + remote + "/" + branch)
}

// refExists checks a fully qualified ref. show-ref --quiet exits 1 with
// no stderr when the ref is absent; anything with stderr is a real error.
func (g *Git) refExists(ref string) (bool, error) {
	_, err := g.run("show-ref", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) && strings.TrimSpace(gitErr.Stderr) == "" {
		return false, nil
	}
	return false, err
}

// ListBranches returns local branch names matching a pattern.
func (g *Git) ListBranches(pattern string) ([]string, error) {
	out, err := g.run("branch", "--list", pattern, "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Fetch fetches a single branch from a remote.
func (g *Git) Fetch(remote, branch string) error {
	_, err := g.run("fetch", remote, branch)
	return err
}

// FetchPrune fetches from a remote and prunes stale tracking refs.
func (g *Git) FetchPrune(remote string) error {
	_, err := g.run("fetch", "--prune", remote)
	return err
}

// Pull pulls a branch from a remote.
func (g *Git) Pull(remote, branch string) error {
	_, err := g.run("pull", remote, branch)
	return err
}

// Push pushes a branch to a remote, setting upstream. force uses
// --force-with-lease, never plain --force.
func (g *Git) Push(remote, branch string, force bool) error {
	args := []string{"push", "-u", remote, branch}
	if force {
		args = append(args, "--force-with-lease")
	}
	_, err := g.run(args...)
	return err
}

// Merge merges a branch into the current branch.
func (g *Git) Merge(branch string) error {
	_, err := g.run("merge", "--no-edit", branch)
	return err
}

// ResetHard resets the current branch and working tree to ref.
func (g *Git) ResetHard(ref string) error {
	_, err := g.run("reset", "--hard", ref)
	return err
}

// Unstage clears the index without touching the working tree.
func (g *Git) Unstage() error {
	_, err := g.run("reset")
	return err
}

// RestorePaths discards staged and worktree changes for the given
// tracked paths. Untracked files are unaffected.
func (g *Git) RestorePaths(paths ...string) error {
	_, err := g.run(append([]string{"restore", "--staged", "--worktree", "--"}, paths...)...)
	return err
}

// ApplyCheck tests whether a patch would apply cleanly, without
// mutating the tree or the index. On failure the returned GitError's
// Stderr names the offending file and hunk.
func (g *Git) ApplyCheck(patch string) error {
	_, err := g.runInput(patch, "apply", "--check", "-")
	return err
}

// Apply applies a patch to the working tree.
func (g *Git) Apply(patch string) error {
	_, err := g.runInput(patch, "apply", "-")
	return err
}

// ApplyNumstat computes the patch's size without applying it: the
// number of touched files and total added+deleted lines. Binary file
// entries ("-" columns) count as zero lines.
func (g *Git) ApplyNumstat(patch string) (files, lines int, err error) {
	out, err := g.runInput(patch, "apply", "--numstat", "-")
	if err != nil {
		return 0, 0, err
	}
	return parseNumstat(out)
}

func parseNumstat(out string) (files, lines int, err error) {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		files++
		if add, aerr := strconv.Atoi(parts[0]); aerr == nil {
			lines += add
		}
		if del, derr := strconv.Atoi(parts[1]); derr == nil {
			lines += del
		}
	}
	return files, lines, nil
}

// DiffNumstat measures the uncommitted changes to the given paths:
// touched file count and total added+deleted lines. Untracked files
// are not part of the diff and contribute nothing.
func (g *Git) DiffNumstat(paths ...string) (files, lines int, err error) {
	args := append([]string{"diff", "HEAD", "--numstat", "--"}, paths...)
	out, err := g.run(args...)
	if err != nil {
		return 0, 0, err
	}
	return parseNumstat(out)
}

// PatchFiles lists the paths a patch touches, in patch order.
func (g *Git) PatchFiles(patch string) ([]string, error) {
	out, err := g.runInput(patch, "apply", "--numstat", "-")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) >= 3 && parts[2] != "" {
			paths = append(paths, parts[2])
		}
	}
	return paths, nil
}
