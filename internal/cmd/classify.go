package cmd

import (
	"github.com/spf13/cobra"
)

var classifyDryRun bool

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolVar(&classifyDryRun, "dry-run", false, "Show the change sets without publishing anything")
}

var classifyCmd = &cobra.Command{
	Use:     "classify",
	GroupID: GroupRun,
	Short:   "Publish the current working-copy edits as grouped pull requests",
	Long: `Group the uncommitted changes in the working copy by the
classification table (one change set per category) and publish each
group as its own pull request.

This is the path for changes that were made outside af, for example by
an agent running in direct mode or by hand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := repoDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}
		_, err = newPipeline(cfg, dir).Classify(cmd.Context(), classifyDryRun)
		return err
	},
}
