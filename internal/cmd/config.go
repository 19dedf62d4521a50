package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupDiag,
	Short:   "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration af would use for this repository: the
built-in defaults overlaid with autoforge.toml where present.`,
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

		// Round-trip through a flat view so durations print in their
		// config-file syntax rather than as nanosecond counts.
		view := struct {
			ProtectedBranches []string `toml:"protected_branches"`
			ForbiddenPrefixes []string `toml:"forbidden_prefixes"`
			BranchPrefix      string   `toml:"branch_prefix"`
			Remote            string   `toml:"remote"`
			MaxProposals      int      `toml:"max_proposals"`
			MaxFiles          int      `toml:"max_files"`
			MaxLines          int      `toml:"max_lines"`
			MaxRepairAttempts int      `toml:"max_repair_attempts"`
			CallTimeout       string   `toml:"call_timeout"`
			OuterTimeout      string   `toml:"outer_timeout"`
			RunTimeout        string   `toml:"run_timeout"`
			Grouping          string   `toml:"grouping"`
			DirectMode        bool     `toml:"direct_mode"`
			PromptExtra       string   `toml:"prompt_extra,omitempty"`

			Agent struct {
				Command    string   `toml:"command"`
				Args       []string `toml:"args,omitempty"`
				Model      string   `toml:"model,omitempty"`
				PromptFlag string   `toml:"prompt_flag"`
			} `toml:"agent"`
		}{
			ProtectedBranches: cfg.ProtectedBranches,
			ForbiddenPrefixes: cfg.ForbiddenPrefixes,
			BranchPrefix:      cfg.BranchPrefix,
			Remote:            cfg.Remote,
			MaxProposals:      cfg.MaxProposals,
			MaxFiles:          cfg.MaxFiles,
			MaxLines:          cfg.MaxLines,
			MaxRepairAttempts: cfg.MaxRepairAttempts,
			CallTimeout:       cfg.CallTimeout.String(),
			OuterTimeout:      cfg.OuterTimeout.String(),
			RunTimeout:        durationOrOff(cfg.RunTimeout),
			Grouping:          cfg.Grouping,
			DirectMode:        cfg.DirectMode,
			PromptExtra:       cfg.PromptExtra,
		}
		view.Agent.Command = cfg.Agent.Command
		view.Agent.Args = cfg.Agent.Args
		view.Agent.Model = cfg.Agent.Model
		view.Agent.PromptFlag = cfg.Agent.PromptFlag

		enc := toml.NewEncoder(os.Stdout)
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		fmt.Printf("\n# %d classification rules (af plan shows their effect)\n", len(cfg.Rules))
		return nil
	},
}

func durationOrOff(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.String()
}
