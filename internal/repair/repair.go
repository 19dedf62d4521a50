// Package repair drives the bounded patch-repair protocol.
//
// A proposal whose patch fails the apply-check gets a fixed number of
// chances: each round sends the failing patch and git's diagnostic back
// to the agent, asks for a corrected diff with no surrounding prose,
// and re-validates whatever comes back. The loop is an explicit state
// machine with two terminal states; there is no recursion and no way
// to exceed the attempt bound.
package repair

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xcawolfe-amzn/autoforge/internal/agent"
	"github.com/xcawolfe-amzn/autoforge/internal/patch"
)

// State is a repair-loop state.
type State string

const (
	StatePending    State = "pending"
	StateValidating State = "validating"
	StateRepairing  State = "repairing"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// CheckFunc performs a non-mutating apply-check. On failure the
// diagnostic carries git's own description of the offending file/hunk.
type CheckFunc func(patchBody string) (ok bool, diagnostic string)

// Result is the outcome of one repair loop run.
type Result struct {
	// State is StateAccepted or StateExhausted.
	State State

	// Patch is the accepted, normalized patch body. Empty on exhaustion.
	Patch string

	// Attempts counts external repair calls made (never exceeds the
	// configured maximum).
	Attempts int

	// Trace records every state transition, for observability and tests.
	Trace []State
}

// Loop validates and repairs a single proposal's patch.
type Loop struct {
	invoker     agent.Invoker
	check       CheckFunc
	maxAttempts int
	output      io.Writer
}

// NewLoop builds a repair loop. maxAttempts bounds external repair
// calls per proposal; zero disables repair entirely (validate once,
// accept or exhaust).
func NewLoop(invoker agent.Invoker, check CheckFunc, maxAttempts int, output io.Writer) *Loop {
	return &Loop{invoker: invoker, check: check, maxAttempts: maxAttempts, output: output}
}

// Run normalizes rawPatch and drives it to a terminal state. Errors
// from the agent (including per-call timeouts) count as failed attempts;
// Run itself only fails when ctx is cancelled outright.
func (l *Loop) Run(ctx context.Context, rawPatch string) (Result, error) {
	res := Result{State: StatePending, Trace: []State{StatePending}}
	current := patch.Normalize(rawPatch)

	res.transition(StateValidating)
	ok, diagnostic := l.check(current)
	if ok {
		res.transition(StateAccepted)
		res.Patch = current
		return res, nil
	}

	for res.Attempts < l.maxAttempts {
		if err := ctx.Err(); err != nil {
			res.transition(StateExhausted)
			return res, err
		}

		res.transition(StateRepairing)
		res.Attempts++

		reply, err := l.invoker.Invoke(ctx, repairPrompt(current, diagnostic))
		if err != nil {
			fmt.Fprintf(l.output, "  repair attempt %d failed: %v\n", res.Attempts, err)
			continue
		}

		repaired := patch.ExtractDiff(reply)
		if repaired == "" {
			// RepairMiss: response had no patch at all.
			fmt.Fprintf(l.output, "  repair attempt %d returned no patch\n", res.Attempts)
			continue
		}

		current = patch.Normalize(repaired)
		res.transition(StateValidating)
		ok, diagnostic = l.check(current)
		if ok {
			res.transition(StateAccepted)
			res.Patch = current
			return res, nil
		}
		fmt.Fprintf(l.output, "  repair attempt %d still failing: %s\n", res.Attempts, firstLine(diagnostic))
	}

	res.transition(StateExhausted)
	return res, nil
}

func (r *Result) transition(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// repairPrompt carries the failing patch and diagnostic back to the
// agent with the instruction to answer with a bare corrected diff.
func repairPrompt(failing, diagnostic string) string {
	var sb strings.Builder
	sb.WriteString("The following patch fails `git apply --check` against the current tree.\n\n")
	sb.WriteString("Diagnostic:\n")
	sb.WriteString(diagnostic)
	sb.WriteString("\n\nFailing patch:\n")
	sb.WriteString(failing)
	sb.WriteString("\nReturn ONLY a corrected unified diff, starting with `")
	sb.WriteString(patch.DiffStartMarker)
	sb.WriteString("`, with no surrounding prose and no index lines.\n")
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
