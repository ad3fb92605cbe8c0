package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var manageSince string

var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Migrate tickets updated since a date",
	Long: `Runs the full migration for tickets updated at or after the given
date: new tickets are created on the target instance (with comments and
attachments replicated), already-migrated tickets receive a content
update. Per-ticket failures are reported in the result; only source-side
transport failures abort the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if manageSince == "" {
			return fmt.Errorf("--since is required (e.g. --since 2026-01-01)")
		}

		if err := loadConfig(); err != nil {
			return err
		}

		p, cleanup, err := buildPipeline()
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := p.Manage(cmd.Context(), manageSince)
		if err != nil {
			return fmt.Errorf("managing tickets since %s: %w", manageSince, err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	manageCmd.Flags().StringVar(&manageSince, "since", "", "cutoff date, tickets updated at or after it are migrated (required)")
	rootCmd.AddCommand(manageCmd)
}
