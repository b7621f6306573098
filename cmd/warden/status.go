package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"haven-hq/warden/pkg/keyring"
	"haven-hq/warden/pkg/pack"
	"haven-hq/warden/pkg/policy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device status",
	Long:  `Show the policy document summary, installed packs, and registered keys.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	status := map[string]any{}

	pol := policy.New()
	if err := pol.Load(cfg.Policy.Path); err != nil {
		status["policy"] = map[string]any{"error": err.Error(), "path": cfg.Policy.Path}
	} else {
		status["policy"] = pol.StatusSummary()
	}

	manifests, err := pack.NewLoader(cfg.Packs.Dir).Discover()
	if err != nil {
		status["packs"] = map[string]any{"error": err.Error()}
	} else {
		ids := make([]string, 0, len(manifests))
		for _, m := range manifests {
			ids = append(ids, m.ID)
		}
		status["packs"] = ids
	}

	registry := keyring.New()
	switch err := registry.LoadFile(cfg.Keys.Path); {
	case err == nil:
		status["keys"] = len(registry.ListKeys())
	case errors.Is(err, os.ErrNotExist):
		status["keys"] = 0
	default:
		status["keys"] = map[string]any{"error": err.Error()}
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
