package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var classifySince string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Discover and classify tickets updated since a date",
	Long: `Searches the source instance for incident tickets updated at or after
the given date and partitions their ids into new (never migrated) and old
(a relation row exists). No tickets are created or modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if classifySince == "" {
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

		result, err := p.ClassifySince(cmd.Context(), classifySince)
		if err != nil {
			return fmt.Errorf("classifying tickets since %s: %w", classifySince, err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifySince, "since", "", "cutoff date, tickets updated at or after it are considered (required)")
	rootCmd.AddCommand(classifyCmd)
}
