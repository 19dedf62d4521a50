package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/group"
	"github.com/xcawolfe-amzn/autoforge/internal/guard"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: GroupRun,
	Short:   "Show how the current working-copy edits would be grouped",
	Long: `Classify the uncommitted changes through the rule table and print the
change sets af classify would publish. Nothing is branched, committed,
or pushed.`,
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
		modified, err := g.ModifiedPaths()
		if err != nil {
			return err
		}
		if len(modified) == 0 {
			fmt.Println("working copy is clean, nothing to plan")
			return nil
		}

		gd := guard.New(cfg.ProtectedBranches, cfg.ForbiddenPrefixes)
		grouper := group.New(cfg, gd, nil)
		sets, dropped := grouper.FromRuleTable(modified, "")

		tbl := style.NewTable(
			style.Column{Name: "CATEGORY", Width: 12},
			style.Column{Name: "FILES", Width: 5},
			style.Column{Name: "PATHS", Width: 60},
		)
		for _, cs := range sets {
			tbl.AddRow(string(cs.Category), fmt.Sprint(len(cs.Files)), joinShort(cs.Files, 60))
		}
		fmt.Print(tbl.Render())
		for _, d := range dropped {
			fmt.Printf("%s dropped %q: %v\n", style.Warning.Render("warning:"), d.Title, d.Reason)
		}
		return nil
	},
}

// joinShort joins paths with commas, eliding the tail past width.
func joinShort(paths []string, width int) string {
	out := ""
	for i, p := range paths {
		next := out
		if i > 0 {
			next += ", "
		}
		next += p
		if len(next) > width && i > 0 {
			return fmt.Sprintf("%s, +%d more", out, len(paths)-i)
		}
		out = next
	}
	return out
}
