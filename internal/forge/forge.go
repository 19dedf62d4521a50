// Package forge publishes review requests through the gh CLI.
package forge

import (
	"fmt"
	"os/exec"
	"strings"
)

// Error captures a failed gh invocation with enough context to
// diagnose it without re-running.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gh %s failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReviewRequest is the payload for one pull request.
type ReviewRequest struct {
	Title string
	Body  string
	Base  string
	Head  string
}

// Client runs gh commands in a fixed working directory.
type Client struct {
	workDir string
}

func NewClient(workDir string) *Client {
	return &Client{workDir: workDir}
}

// run executes gh with the given arguments and returns trimmed stdout.
func (c *Client) run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = c.workDir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &Error{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Create opens a pull request and returns its URL.
func (c *Client) Create(req ReviewRequest) (string, error) {
	return c.run("pr", "create",
		"--title", req.Title,
		"--body", req.Body,
		"--base", req.Base,
		"--head", req.Head,
	)
}

// Available reports whether the gh binary is on PATH.
func Available() error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found: %w", err)
	}
	return nil
}

// AuthStatus checks that gh is authenticated against the forge.
func (c *Client) AuthStatus() error {
	_, err := c.run("auth", "status")
	return err
}
