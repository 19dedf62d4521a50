package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/autoforge/internal/agent"
	"github.com/xcawolfe-amzn/autoforge/internal/config"
	"github.com/xcawolfe-amzn/autoforge/internal/forge"
	"github.com/xcawolfe-amzn/autoforge/internal/pipeline"
)

var (
	runDryRun   bool
	runTaskFile string
	runDirect   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Show the change sets without publishing anything")
	runCmd.Flags().StringVarP(&runTaskFile, "task-file", "f", "", "Read the task prompt from a file")
	runCmd.Flags().BoolVar(&runDirect, "direct", false, "Let the agent edit the working copy itself, then classify the result")
}

var runCmd = &cobra.Command{
	Use:     "run [task...]",
	GroupID: GroupRun,
	Short:   "Run the agent and publish its proposals as pull requests",
	Long: `Run the agent with a task prompt, validate each proposed patch against
the tree, and publish the accepted ones as one pull request each.

The task comes from the arguments or from --task-file. The run starts
from a clean checkout of the protected branch and always returns there.

With --direct the agent edits the working copy itself instead of
emitting patches, and the resulting changes are grouped by the
classification table, the same way af classify does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := taskText(args)
		if err != nil {
			return err
		}

		dir, err := repoDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}

		p := newPipeline(cfg, dir)
		ctx := cmd.Context()

		if runDirect || cfg.DirectMode {
			if err := p.RunDirect(ctx, task); err != nil {
				return err
			}
			_, err := p.Classify(ctx, runDryRun)
			return err
		}

		_, err = p.Run(ctx, task, runDryRun)
		return err
	},
}

// taskText resolves the task prompt from args or --task-file.
func taskText(args []string) (string, error) {
	if runTaskFile != "" {
		data, err := os.ReadFile(runTaskFile)
		if err != nil {
			return "", fmt.Errorf("reading task file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("give a task as arguments or via --task-file")
	}
	return strings.Join(args, " "), nil
}

// newPipeline wires the real agent and forge clients for dir.
func newPipeline(cfg *config.Config, dir string) *pipeline.Pipeline {
	invoker := agent.NewCLI(cfg.Agent, cfg.CallTimeout, cfg.OuterTimeout, dir)
	return pipeline.New(cfg, dir, invoker, forge.NewClient(dir), os.Stdout)
}
