// Package cmd implements the af command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

// Command group IDs for help output.
const (
	GroupRun  = "run"
	GroupRepo = "repo"
	GroupDiag = "diag"
)

var (
	rootRepo   string
	rootConfig string
)

var rootCmd = &cobra.Command{
	Use:   "af",
	Short: "Turn agent output into reviewable pull requests",
	Long: `af runs a generative agent against a repository and publishes its
proposed changes as small, reviewable pull requests.

Each proposal is validated against the tree, repaired once if its patch
does not apply, grouped into disjoint change sets, and published on its
own branch. The protected branch is never committed to or pushed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupRun, Title: "Running:"},
		&cobra.Group{ID: GroupRepo, Title: "Repository:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.PersistentFlags().StringVarP(&rootRepo, "repo", "C", "", "Repository to operate on (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", "", "Config file (default: autoforge.toml in the repository)")
}

// Execute runs the CLI and returns the process exit code. Safety
// violations get a distinct code so wrappers can tell a defective run
// from an ordinary failure.
func Execute() int {
	if !style.IsTerminal() {
		style.Disable()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.Error.Render("error:"), err)
		var pbe *guard.ProtectedBranchError
		if errors.As(err, &pbe) {
			return 2
		}
		return 1
	}
	return 0
}

// repoDir resolves the working directory for this invocation.
func repoDir() (string, error) {
	if rootRepo != "" {
		return filepath.Abs(rootRepo)
	}
	return os.Getwd()
}

// loadConfig reads the effective configuration for the resolved repo.
func loadConfig(dir string) (*config.Config, error) {
	path := rootConfig
	if path == "" {
		path = filepath.Join(dir, config.DefaultFileName)
	}
	return config.Load(path)
}
