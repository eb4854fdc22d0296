package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/config"
	"github.com/abhisek/skilltrack/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "skilltrack",
	Short: "Competency coverage tracking from exam results",
	Long: "skilltrack folds exam results into per-user competency coverage, " +
		"propagates it up the competency hierarchy and reports skill gaps.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SKILLTRACK_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/skilltrack/config.yaml)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(examCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(careerCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config, if any, and the
// environment, then validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured db (SKILLTRACK_DB or config file), then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}
