// Package pipeline orchestrates one autoforge run: invoke the agent,
// extract and validate proposals, repair failing patches, group the
// survivors into disjoint change sets, and publish each one as a
// reviewable branch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xcawolfe-amzn/autoforge/internal/agent"
	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/group"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/proposal"
	"github.com/xcawolfe-amzn/autoforge/internal/publish"
	"github.com/xcawolfe-amzn/autoforge/internal/repair"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

// Pipeline wires the run components against one repository.
type Pipeline struct {
	cfg     *config.Config
	git     *git.Git
	guard   *guard.Guard
	agent   agent.Invoker
	forge   publish.Forge
	output  io.Writer
	workDir string
}

// New builds a pipeline rooted at workDir. invoker and forge are
// injectable so tests can run the whole flow without an agent binary
// or a forge account.
func New(cfg *config.Config, workDir string, invoker agent.Invoker, f publish.Forge, output io.Writer) *Pipeline {
	if output == nil {
		output = io.Discard
	}
	return &Pipeline{
		cfg:     cfg,
		git:     git.NewGit(workDir),
		guard:   guard.New(cfg.ProtectedBranches, cfg.ForbiddenPrefixes),
		agent:   invoker,
		forge:   f,
		output:  output,
		workDir: workDir,
	}
}

// Summary is the outcome of one run.
type Summary struct {
	RunID     string
	Proposals int
	Accepted  int
	Dropped   []group.Dropped
	Results   []publish.Result
}

// Published counts successfully opened review requests.
func (s *Summary) Published() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Run drives the full agent-to-review-request pipeline. The returned
// error is fatal (bad preconditions, a protected-branch violation, or
// a cancelled context); everything else degrades to dropped or failed
// entries in the Summary.
func (p *Pipeline) Run(ctx context.Context, task string, dryRun bool) (*Summary, error) {
	if err := p.preflight(true); err != nil {
		return nil, err
	}
	release, err := acquireRunLock(p.workDir)
	if err != nil {
		return nil, err
	}
	defer release()

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	summary := &Summary{RunID: shortRunID()}

	fmt.Fprintf(p.output, "%s run %s\n", style.Heading.Render("autoforge"), summary.RunID)
	transcript, err := p.agent.Invoke(ctx, taskPrompt(p.cfg, task))
	if err != nil {
		if agent.IsTimeout(err) {
			fmt.Fprintf(p.output, "%s agent call timed out: %v\n", style.Warning.Render("warning:"), err)
			return summary, nil
		}
		return nil, fmt.Errorf("invoking agent: %w", err)
	}

	props := proposal.Extract(transcript)
	summary.Proposals = len(props)
	if len(props) == 0 {
		// The agent may have edited the working copy directly instead
		// of emitting a payload. Fall back to the rule table then.
		p.echoTranscript(transcript)
		modified, merr := p.git.ModifiedPaths()
		if merr != nil {
			return nil, fmt.Errorf("listing modified paths: %w", merr)
		}
		if len(modified) == 0 {
			fmt.Fprintf(p.output, "%s transcript contained no proposals\n", style.Warning.Render("warning:"))
			return summary, nil
		}
		fmt.Fprintf(p.output, "no payload, classifying the agent's working-copy edits\n")
		if err := p.scrubForbidden(); err != nil {
			return nil, err
		}
		modified, merr = p.git.ModifiedPaths()
		if merr != nil {
			return nil, fmt.Errorf("listing modified paths: %w", merr)
		}
		grouper := group.New(p.cfg, p.guard, p.lineCount)
		sets, dropped := grouper.FromRuleTable(modified, summary.RunID)
		summary.Dropped = dropped
		return p.finish(summary, sets, dryRun)
	}
	if len(props) > p.cfg.MaxProposals {
		fmt.Fprintf(p.output, "%s %d proposals over the limit, keeping the first %d\n",
			style.Warning.Render("warning:"), len(props), p.cfg.MaxProposals)
		props = props[:p.cfg.MaxProposals]
	}

	accepted, dropped, err := p.acceptProposals(ctx, props)
	if err != nil {
		return nil, err
	}
	summary.Accepted = len(accepted)
	summary.Dropped = dropped

	modified, err := p.git.ModifiedPaths()
	if err != nil {
		return nil, fmt.Errorf("listing modified paths: %w", err)
	}

	grouper := group.New(p.cfg, p.guard, p.lineCount)
	sets, gdropped := grouper.FromProposals(accepted, modified, summary.RunID)
	summary.Dropped = append(summary.Dropped, gdropped...)

	return p.finish(summary, sets, dryRun)
}

// Classify is the no-agent path: group the current working-copy edits
// by the rule table and publish one change set per category.
func (p *Pipeline) Classify(ctx context.Context, dryRun bool) (*Summary, error) {
	if err := p.preflight(false); err != nil {
		return nil, err
	}
	release, err := acquireRunLock(p.workDir)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: shortRunID()}

	modified, err := p.git.ModifiedPaths()
	if err != nil {
		return nil, fmt.Errorf("listing modified paths: %w", err)
	}
	if len(modified) == 0 {
		fmt.Fprintf(p.output, "working copy is clean, nothing to classify\n")
		return summary, nil
	}
	if err := p.scrubForbidden(); err != nil {
		return nil, err
	}
	modified, err = p.git.ModifiedPaths()
	if err != nil {
		return nil, fmt.Errorf("listing modified paths: %w", err)
	}

	grouper := group.New(p.cfg, p.guard, p.lineCount)
	sets, dropped := grouper.FromRuleTable(modified, summary.RunID)
	summary.Dropped = dropped

	return p.finish(summary, sets, dryRun)
}

// RunDirect hands the repository to the agent itself. Safety rules are
// rendered into the prompt; the transcript is echoed for the operator.
func (p *Pipeline) RunDirect(ctx context.Context, task string) error {
	if err := p.preflight(true); err != nil {
		return err
	}
	release, err := acquireRunLock(p.workDir)
	if err != nil {
		return err
	}
	defer release()

	transcript, err := p.agent.Invoke(ctx, directPrompt(p.cfg, p.guard, task))
	if transcript != "" {
		fmt.Fprintln(p.output, transcript)
	}
	if err != nil {
		return fmt.Errorf("invoking agent: %w", err)
	}
	return nil
}

// finish renders the plan or publishes it.
func (p *Pipeline) finish(summary *Summary, sets []*group.ChangeSet, dryRun bool) (*Summary, error) {
	p.reportDropped(summary.Dropped)
	if len(sets) == 0 {
		fmt.Fprintf(p.output, "no publishable change sets\n")
		return summary, nil
	}
	if dryRun {
		p.renderPlan(sets)
		return summary, nil
	}

	publisher := publish.NewController(p.git, p.guard, p.forge, p.cfg, p.output)
	results, err := publisher.Publish(sets)
	summary.Results = results
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(p.output, "%s %d of %d change sets published\n",
		style.Success.Render("done:"), summary.Published(), len(sets))
	return summary, nil
}

// acceptProposals validates each proposal and drives patch-shaped ones
// through the repair loop. Only a cancelled context is fatal here.
func (p *Pipeline) acceptProposals(ctx context.Context, props []proposal.Proposal) ([]group.Accepted, []group.Dropped, error) {
	var accepted []group.Accepted
	var dropped []group.Dropped

	loop := repair.NewLoop(p.agent, p.applyCheck, p.cfg.MaxRepairAttempts, p.output)
	for i := range props {
		prop := &props[i]
		if err := prop.Validate(); err != nil {
			dropped = append(dropped, group.Dropped{Title: prop.Title, Reason: err})
			continue
		}

		if !prop.HasPatch() {
			accepted = append(accepted, group.Accepted{Proposal: prop, Files: prop.Files})
			continue
		}

		fmt.Fprintf(p.output, "%s %q\n", style.Heading.Render("validating"), prop.Title)
		res, err := loop.Run(ctx, prop.Patch)
		if err != nil {
			return nil, nil, err
		}
		if res.State != repair.StateAccepted {
			dropped = append(dropped, group.Dropped{
				Title:  prop.Title,
				Reason: fmt.Errorf("patch rejected after %d repair attempts", res.Attempts),
			})
			continue
		}
		files, err := p.git.PatchFiles(res.Patch)
		if err != nil {
			dropped = append(dropped, group.Dropped{Title: prop.Title, Reason: err})
			continue
		}
		accepted = append(accepted, group.Accepted{Proposal: prop, Patch: res.Patch, Files: files})
	}
	return accepted, dropped, nil
}

// applyCheck is the repair loop's validator: a non-mutating apply test
// whose stderr becomes the repair diagnostic.
func (p *Pipeline) applyCheck(patchBody string) (ok bool, diagnostic string) {
	err := p.git.ApplyCheck(patchBody)
	if err == nil {
		return true, ""
	}
	var gerr *git.GitError
	if errors.As(err, &gerr) && gerr.Stderr != "" {
		return false, gerr.Stderr
	}
	return false, err.Error()
}

// lineCount measures a change set for the size bound: patch sets by a
// dry-run numstat, file sets by the working-copy diff.
func (p *Pipeline) lineCount(cs *group.ChangeSet) (int, error) {
	if cs.Patch != "" {
		_, lines, err := p.git.ApplyNumstat(cs.Patch)
		return lines, err
	}
	_, lines, err := p.git.DiffNumstat(cs.Files...)
	return lines, err
}

// preflight checks the run preconditions: a git repository, currently
// on a protected branch (the agent's baseline), and optionally a clean
// working copy.
func (p *Pipeline) preflight(requireClean bool) error {
	if !p.git.IsRepo() {
		return fmt.Errorf("%s is not a git repository", p.workDir)
	}
	current, err := p.git.CurrentBranch()
	if err != nil {
		return fmt.Errorf("resolving current branch: %w", err)
	}
	if !p.guard.IsProtectedBranch(current) {
		return fmt.Errorf("runs start from a protected branch (%s), currently on %q",
			strings.Join(p.cfg.ProtectedBranches, " or "), current)
	}
	if requireClean {
		dirty, err := p.git.HasUncommittedChanges()
		if err != nil {
			return fmt.Errorf("checking working copy: %w", err)
		}
		if dirty {
			return fmt.Errorf("working copy has uncommitted changes, commit or stash them first")
		}
	}
	return nil
}

// scrubForbidden clears working-copy edits under forbidden prefixes
// before inferred grouping: tracked files are restored, untracked ones
// deleted. The paths are out of bounds, not an error, so this only
// logs what it removed.
func (p *Pipeline) scrubForbidden() error {
	st, err := p.git.Status()
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}
	if _, tracked := p.guard.FilterPaths(st.Modified); len(tracked) > 0 {
		if err := p.git.RestorePaths(tracked...); err != nil {
			return fmt.Errorf("restoring forbidden paths: %w", err)
		}
		fmt.Fprintf(p.output, "restored %d forbidden path(s): %s\n", len(tracked), strings.Join(tracked, ", "))
	}
	_, untracked := p.guard.FilterPaths(st.Untracked)
	for _, path := range untracked {
		if err := os.RemoveAll(filepath.Join(p.workDir, path)); err != nil {
			return fmt.Errorf("removing forbidden path %s: %w", path, err)
		}
		fmt.Fprintf(p.output, "removed forbidden path %s\n", path)
	}
	return nil
}

// transcriptEchoLimit caps how much raw agent output gets replayed
// when no payload was found.
const transcriptEchoLimit = 2000

// echoTranscript replays the tail of the transcript for debugging a
// payload-less run.
func (p *Pipeline) echoTranscript(transcript string) {
	t := strings.TrimSpace(transcript)
	if t == "" {
		return
	}
	if len(t) > transcriptEchoLimit {
		t = "..." + t[len(t)-transcriptEchoLimit:]
	}
	fmt.Fprintf(p.output, "%s\n%s\n", style.Dim.Render("agent transcript:"), t)
}

func (p *Pipeline) reportDropped(dropped []group.Dropped) {
	for _, d := range dropped {
		fmt.Fprintf(p.output, "%s dropped %q: %v\n", style.Warning.Render("warning:"), d.Title, d.Reason)
	}
}

// renderPlan prints the dry-run table of change sets.
func (p *Pipeline) renderPlan(sets []*group.ChangeSet) {
	tbl := style.NewTable(
		style.Column{Name: "BRANCH", Width: 36},
		style.Column{Name: "CATEGORY", Width: 12},
		style.Column{Name: "FILES", Width: 5},
		style.Column{Name: "TITLE", Width: 40},
	)
	for _, cs := range sets {
		tbl.AddRow(cs.BranchName, string(cs.Category), strconv.Itoa(len(cs.Files)), cs.Title)
	}
	fmt.Fprint(p.output, tbl.Render())
}

// shortRunID returns a compact unique token for branch disambiguation.
func shortRunID() string {
	return uuid.NewString()[:8]
}
