package forge

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Args:   []string{"pr", "create"},
		Stderr: "GraphQL: something broke",
		Err:    errors.New("exit status 1"),
	}
	msg := err.Error()
	if !strings.Contains(msg, "gh pr create failed") {
		t.Errorf("message = %q, want command context", msg)
	}
	if !strings.Contains(msg, "GraphQL: something broke") {
		t.Errorf("message = %q, want stderr included", msg)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 4")
	err := &Error{Args: []string{"auth", "status"}, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("Unwrap did not surface the inner error")
	}
}

func TestCreateReportsMissingBinaryOrRepo(t *testing.T) {
	// Either gh is absent or the temp dir is not a repo; both must
	// come back as *Error, never a panic or a bare exec error.
	c := NewClient(t.TempDir())
	_, err := c.run("pr", "view", "--json", "url")
	if err == nil {
		t.Skip("gh succeeded unexpectedly, environment has a configured repo")
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Errorf("error type = %T, want *Error", err)
	}
}
