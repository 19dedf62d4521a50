package publish

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/forge"
	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/group"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
)

type fakeForge struct {
	reqs []forge.ReviewRequest
	err  error
}

func (f *fakeForge) Create(r forge.ReviewRequest) (string, error) {
	f.reqs = append(f.reqs, r)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://example.test/pr/%d", len(f.reqs)), nil
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// initRemoteRepo builds a local repo with a bare remote and an initial
// pushed commit. Returns the local dir and the default branch name.
func initRemoteRepo(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()

	remoteDir := filepath.Join(tmp, "remote.git")
	if err := exec.Command("git", "init", "--bare", remoteDir).Run(); err != nil {
		t.Fatalf("git init --bare: %v", err)
	}

	localDir := filepath.Join(tmp, "local")
	if err := os.MkdirAll(localDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	runGit(t, localDir, "init")
	runGit(t, localDir, "config", "user.email", "test@test.com")
	runGit(t, localDir, "config", "user.name", "Test User")
	if err := os.WriteFile(filepath.Join(localDir, "README.md"), []byte("# Test\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGit(t, localDir, "add", ".")
	runGit(t, localDir, "commit", "-m", "initial")
	runGit(t, localDir, "remote", "add", "origin", remoteDir)
	branch := runGit(t, localDir, "branch", "--show-current")
	runGit(t, localDir, "push", "-u", "origin", branch)
	return localDir, branch
}

func newController(t *testing.T, dir, protected string, f Forge) (*Controller, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.ProtectedBranches = []string{protected}
	gd := guard.New(cfg.ProtectedBranches, cfg.ForbiddenPrefixes)
	return NewController(git.NewGit(dir), gd, f, cfg, io.Discard), cfg
}

func TestPublishFileChangeSet(t *testing.T) {
	dir, branch := initRemoteRepo(t)
	ff := &fakeForge{}
	c, _ := newController(t, dir, branch, ff)

	// Working-copy edits: one claimed by the change set, one left over.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Edited\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("keep me\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cs := &group.ChangeSet{
		BranchName:    "autoforge/readme",
		Category:      config.CategoryDocs,
		Title:         "readme edit",
		Files:         []string{"README.md"},
		CommitMessage: "docs: readme edit",
		ReviewBody:    "Type: Docs\n",
	}

	results, err := c.Publish([]*group.ChangeSet{cs})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if results[0].URL == "" {
		t.Error("missing review URL")
	}

	if got := runGit(t, dir, "branch", "--show-current"); got != branch {
		t.Errorf("current branch = %q, want %q", got, branch)
	}
	if got := runGit(t, dir, "log", "-1", "--format=%s", "autoforge/readme"); got != "docs: readme edit" {
		t.Errorf("branch commit = %q", got)
	}
	if got := runGit(t, dir, "log", "-1", "--format=%s", branch); got != "initial" {
		t.Errorf("protected branch gained a commit: %q", got)
	}
	if len(ff.reqs) != 1 {
		t.Errorf("forge calls = %d, want 1", len(ff.reqs))
	}
	if got := runGit(t, dir, "rev-parse", "--verify", "origin/autoforge/readme"); got == "" {
		t.Error("branch not pushed")
	}
	// The leftover edit survives, the claimed file moved into the branch.
	if _, err := os.Stat(filepath.Join(dir, "leftover.txt")); err != nil {
		t.Errorf("leftover file gone: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	if string(data) != "# Test\n" {
		t.Errorf("README = %q, want the protected-branch version", data)
	}

	if len(ff.reqs) != 1 {
		t.Fatalf("forge calls = %d, want 1", len(ff.reqs))
	}
	req := ff.reqs[0]
	if req.Base != branch || req.Head != "autoforge/readme" || req.Title != "docs: readme edit" {
		t.Errorf("review request = %+v", req)
	}
}

func TestPublishPatchChangeSet(t *testing.T) {
	dir, branch := initRemoteRepo(t)
	ff := &fakeForge{}
	c, _ := newController(t, dir, branch, ff)

	patch := `diff --git a/notes.txt b/notes.txt
new file mode 100644
--- /dev/null
+++ b/notes.txt
@@ -0,0 +1,2 @@
+alpha
+beta
`
	cs := &group.ChangeSet{
		BranchName:    "autoforge/notes",
		Category:      config.CategoryDocs,
		Title:         "add notes",
		Files:         []string{"notes.txt"},
		CommitMessage: "docs: add notes",
		ReviewBody:    "Type: Docs\n",
		Patch:         patch,
	}

	results, err := c.Publish([]*group.ChangeSet{cs})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("result err = %v", results[0].Err)
	}

	if got := runGit(t, dir, "branch", "--show-current"); got != branch {
		t.Errorf("current branch = %q, want %q", got, branch)
	}
	// The file lives on the branch, not in the restored working copy.
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); !os.IsNotExist(err) {
		t.Errorf("notes.txt still present after restore: %v", err)
	}
	if got := runGit(t, dir, "log", "-1", "--format=%s", "autoforge/notes"); got != "docs: add notes" {
		t.Errorf("branch commit = %q", got)
	}
}

func TestPublishBadPatchIsIsolated(t *testing.T) {
	dir, branch := initRemoteRepo(t)
	ff := &fakeForge{}
	c, _ := newController(t, dir, branch, ff)

	bad := &group.ChangeSet{
		BranchName:    "autoforge/broken",
		Title:         "broken",
		Files:         []string{"missing.txt"},
		CommitMessage: "bugfix: broken",
		Patch: `diff --git a/missing.txt b/missing.txt
--- a/missing.txt
+++ b/missing.txt
@@ -1 +1 @@
-old
+new
`,
	}
	good := &group.ChangeSet{
		BranchName:    "autoforge/good",
		Title:         "good",
		Files:         []string{"fresh.txt"},
		CommitMessage: "docs: good",
		Patch: `diff --git a/fresh.txt b/fresh.txt
new file mode 100644
--- /dev/null
+++ b/fresh.txt
@@ -0,0 +1 @@
+hello
`,
	}

	results, err := c.Publish([]*group.ChangeSet{bad, good})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Err == nil {
		t.Error("bad patch did not fail")
	}
	if results[1].Err != nil {
		t.Errorf("good set failed: %v", results[1].Err)
	}
	if len(ff.reqs) != 1 {
		t.Errorf("forge calls = %d, want 1", len(ff.reqs))
	}
	if got := runGit(t, dir, "branch", "--show-current"); got != branch {
		t.Errorf("current branch = %q, want %q", got, branch)
	}
}

func TestPublishProtectedBranchNameAborts(t *testing.T) {
	dir, branch := initRemoteRepo(t)
	ff := &fakeForge{}
	c, _ := newController(t, dir, branch, ff)

	sets := []*group.ChangeSet{
		{BranchName: branch, Title: "evil", CommitMessage: "evil"},
		{BranchName: "autoforge/after", Title: "after", CommitMessage: "after"},
	}

	results, err := c.Publish(sets)
	var pbe *guard.ProtectedBranchError
	if !errors.As(err, &pbe) {
		t.Fatalf("err = %v, want ProtectedBranchError", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want processing to stop at the violation", len(results))
	}
	if len(ff.reqs) != 0 {
		t.Errorf("forge calls = %d, want 0", len(ff.reqs))
	}
}

func TestPublishForgeFailureStillRestores(t *testing.T) {
	dir, branch := initRemoteRepo(t)
	ff := &fakeForge{err: errors.New("api limit")}
	c, _ := newController(t, dir, branch, ff)

	cs := &group.ChangeSet{
		BranchName:    "autoforge/limited",
		Title:         "limited",
		Files:         []string{"x.txt"},
		CommitMessage: "docs: limited",
		Patch: `diff --git a/x.txt b/x.txt
new file mode 100644
--- /dev/null
+++ b/x.txt
@@ -0,0 +1 @@
+x
`,
	}

	results, err := c.Publish([]*group.ChangeSet{cs})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if results[0].Err == nil || !strings.Contains(results[0].Err.Error(), "api limit") {
		t.Errorf("result err = %v, want the forge failure", results[0].Err)
	}
	if got := runGit(t, dir, "branch", "--show-current"); got != branch {
		t.Errorf("current branch = %q, want %q", got, branch)
	}
	// Pushed but unopened: the branch stays on the remote for cleanup.
	if got := runGit(t, dir, "rev-parse", "--verify", "origin/autoforge/limited"); got == "" {
		t.Error("branch was not pushed")
	}
}
