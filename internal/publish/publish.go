// Package publish turns change sets into pushed branches and open
// review requests.
//
// Each change set is published in isolation: a failure is recorded and
// the next set proceeds. The one exception is a protected-branch
// violation, which aborts the whole batch. Whatever happens, the
// working copy is returned to the protected branch before the next
// set starts.
package publish

import (
	"errors"
	"fmt"
	"io"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/forge"
	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/group"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

// Forge opens review requests. Satisfied by *forge.Client.
type Forge interface {
	Create(req forge.ReviewRequest) (string, error)
}

// Result is the outcome for one change set.
type Result struct {
	ChangeSet *group.ChangeSet
	URL       string
	Err       error
}

// Controller publishes change sets against one repository.
type Controller struct {
	git    *git.Git
	guard  *guard.Guard
	forge  Forge
	cfg    *config.Config
	output io.Writer
}

func NewController(g *git.Git, gd *guard.Guard, f Forge, cfg *config.Config, output io.Writer) *Controller {
	if output == nil {
		output = io.Discard
	}
	return &Controller{git: g, guard: gd, forge: f, cfg: cfg, output: output}
}

// Publish processes the change sets in order. The returned error is
// non-nil only for batch-fatal conditions; per-set failures live in
// the Results.
func (c *Controller) Publish(sets []*group.ChangeSet) ([]Result, error) {
	results := make([]Result, 0, len(sets))
	for _, cs := range sets {
		fmt.Fprintf(c.output, "%s %s (%d files)\n",
			style.Heading.Render("publishing"), cs.BranchName, len(cs.Files))

		url, err := c.publishOne(cs)
		results = append(results, Result{ChangeSet: cs, URL: url, Err: err})

		var pbe *guard.ProtectedBranchError
		if errors.As(err, &pbe) {
			return results, err
		}
		if err != nil {
			fmt.Fprintf(c.output, "  %s %v\n", style.Error.Render("failed:"), err)
			continue
		}
		fmt.Fprintf(c.output, "  %s %s\n", style.Success.Render("opened"), url)
	}
	return results, nil
}

// publishOne runs the branch/commit/push/review sequence for a single
// change set. The working copy is restored to the protected branch on
// every exit path.
func (c *Controller) publishOne(cs *group.ChangeSet) (url string, err error) {
	protected := c.cfg.ProtectedBranch()
	remote := c.cfg.Remote

	if gerr := c.guard.CheckBranch(cs.BranchName, "publish"); gerr != nil {
		return "", gerr
	}

	fromPatch := cs.Patch != ""
	defer func() {
		if rerr := c.restore(protected, remote, fromPatch); rerr != nil {
			if err == nil {
				err = rerr
			} else {
				err = fmt.Errorf("%w (restore also failed: %v)", err, rerr)
			}
		}
	}()

	if fromPatch {
		// Patch sets build on the remote head, not whatever the local
		// protected branch happens to point at.
		if ferr := c.git.Fetch(remote, protected); ferr != nil {
			return "", fmt.Errorf("fetching %s/%s: %w", remote, protected, ferr)
		}
		if berr := c.git.CreateBranchFrom(cs.BranchName, remote+"/"+protected); berr != nil {
			return "", fmt.Errorf("creating branch: %w", berr)
		}
		if aerr := c.git.Apply(cs.Patch); aerr != nil {
			return "", fmt.Errorf("applying patch: %w", aerr)
		}
		if aerr := c.git.AddAll(); aerr != nil {
			return "", fmt.Errorf("staging changes: %w", aerr)
		}
	} else {
		// File sets carry working-copy edits with them onto the new
		// branch and commit only their own paths.
		if berr := c.git.CreateBranchFrom(cs.BranchName, "HEAD"); berr != nil {
			return "", fmt.Errorf("creating branch: %w", berr)
		}
		if aerr := c.git.Add(cs.Files...); aerr != nil {
			return "", fmt.Errorf("staging files: %w", aerr)
		}
	}

	// The branch we are about to commit on must be the one we created.
	current, cerr := c.git.CurrentBranch()
	if cerr != nil {
		return "", fmt.Errorf("resolving current branch: %w", cerr)
	}
	if gerr := c.guard.CheckBranch(current, "commit"); gerr != nil {
		return "", gerr
	}
	if current != cs.BranchName {
		return "", fmt.Errorf("on branch %q, expected %q", current, cs.BranchName)
	}

	if cerr := c.git.Commit(cs.CommitMessage); cerr != nil {
		return "", fmt.Errorf("committing: %w", cerr)
	}
	if perr := c.git.Push(remote, cs.BranchName, false); perr != nil {
		return "", fmt.Errorf("pushing: %w", perr)
	}

	url, ferr := c.forge.Create(forge.ReviewRequest{
		Title: cs.CommitMessage,
		Body:  cs.ReviewBody,
		Base:  protected,
		Head:  cs.BranchName,
	})
	if ferr != nil {
		return "", fmt.Errorf("opening review request: %w", ferr)
	}
	return url, nil
}

// restore returns the working copy to the protected branch. Patch sets
// started from a pristine remote head, so the local protected branch is
// realigned to it; file sets keep their remaining uncommitted edits.
func (c *Controller) restore(protected, remote string, fromPatch bool) error {
	if fromPatch {
		// Drop anything a partial or staged apply left behind so the
		// checkout below cannot conflict.
		if err := c.git.ResetHard("HEAD"); err != nil {
			return fmt.Errorf("cleaning branch: %w", err)
		}
	} else {
		if err := c.git.Unstage(); err != nil {
			return fmt.Errorf("unstaging: %w", err)
		}
	}
	if err := c.git.Checkout(protected); err != nil {
		return fmt.Errorf("returning to %s: %w", protected, err)
	}
	if fromPatch {
		if err := c.git.ResetHard(remote + "/" + protected); err != nil {
			return fmt.Errorf("realigning %s: %w", protected, err)
		}
	}
	return nil
}
