// Package agent invokes the external generative agent CLI.
//
// The agent is an opaque collaborator: prompt in, raw transcript out.
// Every invocation is bounded by a wall-clock timeout so a hung agent
// process can never stall the pipeline. Exceeding the timeout is that
// call's failure, and the pipeline always regains control.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
)

// Invoker is a single blocking call to the generative agent.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface. Tests use it
// to script agent responses.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// CLI invokes the configured agent command.
type CLI struct {
	cfg         config.AgentConfig
	callTimeout time.Duration
	graceDelay  time.Duration
	workDir     string
}

// NewCLI builds an agent invoker from the run configuration. callTimeout
// bounds each call; graceDelay is how long the process gets to exit
// after cancellation before it is killed outright.
func NewCLI(cfg config.AgentConfig, callTimeout, graceDelay time.Duration, workDir string) *CLI {
	return &CLI{cfg: cfg, callTimeout: callTimeout, graceDelay: graceDelay, workDir: workDir}
}

// Invoke runs the agent with the given prompt and returns its raw
// transcript. The deadline is the tighter of ctx and the per-call
// timeout; a timeout surfaces as an error, never a hang.
func (c *CLI) Invoke(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, c.cfg.Command, c.args(prompt)...)
	cmd.Dir = c.workDir
	if c.graceDelay > 0 {
		cmd.WaitDelay = c.graceDelay
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if callCtx.Err() != nil {
		return "", fmt.Errorf("agent call timed out after %v: %w", c.callTimeout, callCtx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("agent call failed: %w", err)
		}
		return "", fmt.Errorf("agent call failed: %s: %w", msg, err)
	}
	return stdout.String(), nil
}

// args assembles the agent command line. An empty PromptFlag passes the
// prompt as the final positional argument.
func (c *CLI) args(prompt string) []string {
	args := append([]string{}, c.cfg.Args...)
	if c.cfg.Model != "" {
		args = append(args, "-m", c.cfg.Model)
	}
	if c.cfg.PromptFlag == "" {
		return append(args, prompt)
	}
	return append(args, c.cfg.PromptFlag, prompt)
}

// IsTimeout reports whether an Invoke error was a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
