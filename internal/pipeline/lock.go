package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked reports a concurrent run against the same repository.
var ErrLocked = fmt.Errorf("another autoforge run is in progress")

// acquireRunLock takes an exclusive advisory lock for this repository.
// Two concurrent runs would fight over the working copy, so the second
// one fails fast instead of waiting.
func acquireRunLock(workDir string) (release func(), err error) {
	fl := flock.New(filepath.Join(workDir, ".git", "autoforge.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}
