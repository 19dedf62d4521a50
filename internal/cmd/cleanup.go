package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

var cleanupDryRun bool

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "Report stale branches without deleting them")
}

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	GroupID: GroupRepo,
	Short:   "Delete local af branches whose work has landed",
	Long: `Delete local branches under the configured branch prefix that are
fully merged into the protected branch. Unmerged branches are left
alone, as are the current and protected branches.`,
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

		g := git.NewGit(dir)
		if !g.IsRepo() {
			return fmt.Errorf("%s is not a git repository", dir)
		}
		if err := g.FetchPrune(cfg.Remote); err != nil {
			fmt.Printf("%s fetch --prune failed: %v\n", style.Warning.Render("warning:"), err)
		}

		pruned, err := g.PruneStaleBranches(cfg.BranchPrefix+"*", cfg.ProtectedBranch(), cleanupDryRun)
		if err != nil {
			return err
		}
		if len(pruned) == 0 {
			fmt.Println("no stale branches")
			return nil
		}
		verb := "deleted"
		if cleanupDryRun {
			verb = "would delete"
		}
		for _, p := range pruned {
			fmt.Printf("%s %s (%s)\n", style.Success.Render(verb), p.Name, p.Reason)
		}
		return nil
	},
}
