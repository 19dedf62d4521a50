package doctor

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/xcawolfe-amzn/autoforge/internal/forge"
)

// GitBinaryCheck verifies git is installed.
type GitBinaryCheck struct{}

func (c *GitBinaryCheck) Name() string { return "git-binary" }

func (c *GitBinaryCheck) Run(ctx *Context) *Result {
	if _, err := exec.LookPath("git"); err != nil {
		return &Result{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "git not found in PATH",
			FixHint: "Install git and re-run",
		}
	}
	return &Result{Name: c.Name(), Status: StatusOK, Message: "git found"}
}

// RepositoryCheck verifies the target directory is a git repository
// with the configured remote.
type RepositoryCheck struct{}

func (c *RepositoryCheck) Name() string { return "repository" }

func (c *RepositoryCheck) Run(ctx *Context) *Result {
	if !ctx.Git.IsRepo() {
		return &Result{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%s is not a git repository", ctx.Dir),
		}
	}
	if err := ctx.Git.Fetch(ctx.Config.Remote, ctx.Config.ProtectedBranch()); err != nil {
		return &Result{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("cannot fetch %s/%s", ctx.Config.Remote, ctx.Config.ProtectedBranch()),
			FixHint: "Check the remote configuration and network access",
		}
	}
	return &Result{Name: c.Name(), Status: StatusOK, Message: "repository and remote reachable"}
}

// ProtectedBranchCheck verifies the checkout is on a protected branch,
// which is where runs start from.
type ProtectedBranchCheck struct{}

func (c *ProtectedBranchCheck) Name() string { return "protected-branch" }

func (c *ProtectedBranchCheck) Run(ctx *Context) *Result {
	if !ctx.Git.IsRepo() {
		return &Result{Name: c.Name(), Status: StatusWarning, Message: "skipped, not a repository"}
	}
	current, err := ctx.Git.CurrentBranch()
	if err != nil {
		return &Result{Name: c.Name(), Status: StatusError, Message: err.Error()}
	}
	for _, b := range ctx.Config.ProtectedBranches {
		if b == current {
			return &Result{Name: c.Name(), Status: StatusOK, Message: fmt.Sprintf("on %s", current)}
		}
	}
	return &Result{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("on %q, runs start from %s", current, strings.Join(ctx.Config.ProtectedBranches, " or ")),
		FixHint: fmt.Sprintf("git checkout %s", ctx.Config.ProtectedBranch()),
	}
}

// AgentBinaryCheck verifies the configured agent CLI is installed.
type AgentBinaryCheck struct{}

func (c *AgentBinaryCheck) Name() string { return "agent-binary" }

func (c *AgentBinaryCheck) Run(ctx *Context) *Result {
	cmd := ctx.Config.Agent.Command
	if _, err := exec.LookPath(cmd); err != nil {
		return &Result{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("agent command %q not found in PATH", cmd),
			FixHint: "Install the agent CLI or set agent.command in autoforge.toml",
		}
	}
	return &Result{Name: c.Name(), Status: StatusOK, Message: fmt.Sprintf("%s found", cmd)}
}

// ForgeCheck verifies gh is installed and authenticated.
type ForgeCheck struct{}

func (c *ForgeCheck) Name() string { return "forge" }

func (c *ForgeCheck) Run(ctx *Context) *Result {
	if err := forge.Available(); err != nil {
		return &Result{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "gh not found in PATH",
			FixHint: "Install the GitHub CLI: https://cli.github.com",
		}
	}
	if err := forge.NewClient(ctx.Dir).AuthStatus(); err != nil {
		return &Result{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "gh is not authenticated",
			FixHint: "Run: gh auth login",
		}
	}
	return &Result{Name: c.Name(), Status: StatusOK, Message: "gh authenticated"}
}
