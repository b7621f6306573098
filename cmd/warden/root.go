package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"haven-hq/warden/pkg/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - safety-gating decision core for offline expert appliances",
	Long: `Warden packages distilled domain expertise behind a safety-gating
decision core designed for offline, resource-constrained deployments.

Every query runs through a three-stage pipeline:
  - A worker model drafts a response from loaded knowledge packs
  - An auditor model reviews the draft for safety and accuracy
  - A deterministic resolver turns both into a final decision

The device is governed by a declarative policy document, protected by
scoped override keys, and records everything to a tamper-evident,
hash-chained audit log.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadRuntimeConfig loads the runtime configuration for a subcommand
// and stores it as the process-wide instance. A missing config file
// falls back to defaults so the tool works on a fresh device.
func loadRuntimeConfig() (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		config.SetConfig(cfg)
		return cfg, nil
	}
	if err := config.Initialize(cfgFile); err != nil {
		return nil, err
	}
	return config.MustGetConfig(), nil
}
