package repair

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/xcawolfe-amzn/autoforge/internal/agent"
)

const goodPatch = "diff --git a/f b/f\n--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n"
const badPatch = "diff --git a/f b/f\n--- a/f\n+++ b/f\n@@ -1 +1 @@\n-WRONG\n+b\n"

// checkAccepting passes only the good patch.
func checkAccepting(patchBody string) (bool, string) {
	if strings.Contains(patchBody, "WRONG") {
		return false, "error: patch failed: f:1"
	}
	return true, ""
}

func checkRejecting(string) (bool, string) {
	return false, "error: patch failed: f:1"
}

func TestAcceptsCleanPatchWithoutAgentCall(t *testing.T) {
	calls := 0
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", nil
	})
	l := NewLoop(inv, checkAccepting, 3, io.Discard)

	res, err := l.Run(context.Background(), goodPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAccepted {
		t.Errorf("state = %s, want accepted", res.State)
	}
	if calls != 0 {
		t.Errorf("agent called %d times, want 0", calls)
	}
	if res.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", res.Attempts)
	}
	want := []State{StatePending, StateValidating, StateAccepted}
	if !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("trace = %v, want %v", res.Trace, want)
	}
}

func TestRepairSucceedsOnSecondValidation(t *testing.T) {
	var seenPrompt string
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		seenPrompt = prompt
		return "Here is the fix:\n" + goodPatch, nil
	})
	l := NewLoop(inv, checkAccepting, 3, io.Discard)

	res, err := l.Run(context.Background(), badPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAccepted {
		t.Fatalf("state = %s, want accepted", res.State)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	if !strings.Contains(res.Patch, "+b") {
		t.Errorf("accepted patch = %q", res.Patch)
	}

	// The repair prompt must carry both the diagnostic and the old patch.
	if !strings.Contains(seenPrompt, "patch failed: f:1") {
		t.Errorf("prompt missing diagnostic: %s", seenPrompt)
	}
	if !strings.Contains(seenPrompt, "WRONG") {
		t.Errorf("prompt missing failing patch: %s", seenPrompt)
	}

	want := []State{StatePending, StateValidating, StateRepairing, StateValidating, StateAccepted}
	if !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("trace = %v, want %v", res.Trace, want)
	}
}

func TestExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return badPatch, nil
	})
	l := NewLoop(inv, checkRejecting, 1, io.Discard)

	res, err := l.Run(context.Background(), badPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateExhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}
	if calls != 1 {
		t.Errorf("agent called %d times, want exactly 1", calls)
	}
	if res.Patch != "" {
		t.Errorf("exhausted result should carry no patch, got %q", res.Patch)
	}
}

func TestRepairMissCountsAsAttempt(t *testing.T) {
	calls := 0
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "sorry, I can't produce a patch", nil
	})
	l := NewLoop(inv, checkRejecting, 2, io.Discard)

	res, err := l.Run(context.Background(), badPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateExhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}
	if calls != 2 {
		t.Errorf("agent called %d times, want 2", calls)
	}
}

func TestAgentErrorCountsAsAttempt(t *testing.T) {
	calls := 0
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", context.DeadlineExceeded
	})
	l := NewLoop(inv, checkRejecting, 2, io.Discard)

	res, err := l.Run(context.Background(), badPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateExhausted || calls != 2 {
		t.Errorf("state = %s, calls = %d; want exhausted after 2", res.State, calls)
	}
}

func TestZeroAttemptsValidatesOnce(t *testing.T) {
	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Fatal("agent must not be called with maxAttempts = 0")
		return "", nil
	})
	l := NewLoop(inv, checkRejecting, 0, io.Discard)

	res, err := l.Run(context.Background(), badPatch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateExhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}
}

func TestCancelledContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := agent.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return badPatch, nil
	})
	l := NewLoop(inv, checkRejecting, 5, io.Discard)

	res, err := l.Run(ctx, badPatch)
	if err == nil {
		t.Fatal("expected context error")
	}
	if res.State != StateExhausted {
		t.Errorf("state = %s, want exhausted", res.State)
	}
	if res.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", res.Attempts)
	}
}
