package agent

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
)

func TestArgsAssembly(t *testing.T) {
	c := NewCLI(config.AgentConfig{
		Command:    "bot",
		Args:       []string{"--yolo"},
		Model:      "test-model",
		PromptFlag: "-p",
	}, time.Minute, 0, "")

	got := c.args("do things")
	want := []string{"--yolo", "-m", "test-model", "-p", "do things"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}

func TestArgsPositionalPrompt(t *testing.T) {
	c := NewCLI(config.AgentConfig{Command: "bot"}, time.Minute, 0, "")
	got := c.args("hello")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("args = %v, want [hello]", got)
	}
}

func TestInvokeReturnsStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	c := NewCLI(config.AgentConfig{
		Command: "sh",
		Args:    []string{"-c", "echo transcript; echo noise >&2; true"},
	}, 10*time.Second, time.Second, t.TempDir())

	out, err := c.Invoke(context.Background(), "")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "transcript") {
		t.Errorf("out = %q, want transcript", out)
	}
}

func TestInvokeTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	c := NewCLI(config.AgentConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
	}, 50*time.Millisecond, 100*time.Millisecond, t.TempDir())

	start := time.Now()
	_, err := c.Invoke(context.Background(), "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected timeout classification, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Invoke did not regain control promptly: %v", elapsed)
	}
}

func TestInvokeFailureCarriesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	c := NewCLI(config.AgentConfig{
		Command: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 3"},
	}, 10*time.Second, time.Second, t.TempDir())

	_, err := c.Invoke(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry stderr, got: %v", err)
	}
}
