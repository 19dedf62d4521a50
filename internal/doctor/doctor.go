// Package doctor runs environment health checks for af.
package doctor

import (
	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/git"
)

// Status is a check outcome level.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	default:
		return "error"
	}
}

// Context carries the shared state checks inspect.
type Context struct {
	Dir    string
	Config *config.Config
	Git    *git.Git
}

// Result is one check's outcome.
type Result struct {
	Name    string
	Status  Status
	Message string
	FixHint string
}

// Check is a single diagnostic.
type Check interface {
	Name() string
	Run(ctx *Context) *Result
}

// All returns the standard check list in run order.
func All() []Check {
	return []Check{
		&GitBinaryCheck{},
		&RepositoryCheck{},
		&ProtectedBranchCheck{},
		&AgentBinaryCheck{},
		&ForgeCheck{},
	}
}

// RunAll executes every check and reports whether any errored.
func RunAll(ctx *Context, checks []Check) (results []*Result, healthy bool) {
	healthy = true
	for _, c := range checks {
		r := c.Run(ctx)
		if r.Status == StatusError {
			healthy = false
		}
		results = append(results, r)
	}
	return results, healthy
}
