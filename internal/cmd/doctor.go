package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/autoforge/internal/doctor"
	"github.com/xcawolfe-amzn/autoforge/internal/git"
	"github.com/xcawolfe-amzn/autoforge/internal/style"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Check that af can run against this repository",
	Long: `Run health checks: git and the agent CLI on PATH, a reachable
repository and remote, the checkout on a protected branch, and an
authenticated gh.`,
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

		ctx := &doctor.Context{Dir: dir, Config: cfg, Git: git.NewGit(dir)}
		results, healthy := doctor.RunAll(ctx, doctor.All())

		for _, r := range results {
			mark := style.Success.Render("✓")
			switch r.Status {
			case doctor.StatusWarning:
				mark = style.Warning.Render("!")
			case doctor.StatusError:
				mark = style.Error.Render("✗")
			}
			fmt.Printf("%s %-18s %s\n", mark, r.Name, r.Message)
			if r.FixHint != "" && r.Status != doctor.StatusOK {
				fmt.Printf("  %s\n", style.Dim.Render(r.FixHint))
			}
		}
		if !healthy {
			return fmt.Errorf("some checks failed")
		}
		return nil
	},
}
