package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dt-pm-tools/jira-bridge/internal/config"
	"github.com/dt-pm-tools/jira-bridge/internal/jira"
	"github.com/dt-pm-tools/jira-bridge/internal/pipeline"
	"github.com/dt-pm-tools/jira-bridge/internal/replicate"
	"github.com/dt-pm-tools/jira-bridge/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	appConfig config.Config
	logger    *slog.Logger
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:     "jira-bridge",
	Short:   "Migrate incident tickets between two Jira instances",
	Long:    `Discovers incident tickets on a source Jira instance, classifies them against the local relation store, creates or updates the corresponding tickets on the target instance and replicates comments and attachments.`,
	Version: version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.jira-bridge.yaml)")
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// loadConfig loads and validates configuration. Commands that need Jira
// access call this.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'jira-bridge config' to set up credentials", err)
	}
	appConfig = cfg
	return nil
}

// buildPipeline is the composition root: it wires clients, store and
// replicator into a pipeline. The returned cleanup closes the store.
func buildPipeline() (*pipeline.Pipeline, func(), error) {
	source := jira.NewClient(appConfig.Source.URL, appConfig.Source.Email, appConfig.Source.Token)
	target := jira.NewClient(appConfig.Target.URL, appConfig.Target.Email, appConfig.Target.Token)

	st, err := store.Open(appConfig.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening relation store: %w", err)
	}

	replicator := replicate.New(source, target, logger)
	p := pipeline.New(source, target, st, replicator, logger)
	return p, func() { st.Close() }, nil
}
