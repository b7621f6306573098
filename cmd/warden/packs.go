package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"haven-hq/warden/pkg/pack"
)

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Inspect installed knowledge packs",
	Long: `List and inspect the knowledge packs installed on this device.

A pack is a directory carrying a manifest, worker and auditor prompt
templates, and knowledge documents. Whether a pack may serve queries is
governed by the policy document's modules section, not by installation
alone.`,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packs",
	RunE:  runPacksList,
}

var packsShowCmd = &cobra.Command{
	Use:   "show <pack-id>",
	Short: "Show one pack in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runPacksShow,
}

func init() {
	rootCmd.AddCommand(packsCmd)
	packsCmd.AddCommand(packsListCmd, packsShowCmd)
}

func runPacksList(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	manifests, err := pack.NewLoader(cfg.Packs.Dir).Discover()
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		fmt.Printf("no packs installed under %s\n", cfg.Packs.Dir)
		return nil
	}

	for _, m := range manifests {
		fmt.Printf("%-20s %-8s %s\n", m.ID, m.Version, m.Name)
	}
	return nil
}

func runPacksShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	loaded, err := pack.NewLoader(cfg.Packs.Dir).Load(args[0])
	if err != nil {
		return err
	}

	m := loaded.Manifest
	fmt.Printf("ID:             %s\n", m.ID)
	fmt.Printf("Name:           %s\n", m.Name)
	fmt.Printf("Version:        %s\n", m.Version)
	if m.Description != "" {
		fmt.Printf("Description:    %s\n", m.Description)
	}
	fmt.Printf("Modes:          %s\n", strings.Join(m.Modes, ", "))
	if len(m.ReadingLevels) > 0 {
		fmt.Printf("Reading levels: %s\n", strings.Join(m.ReadingLevels, ", "))
	}
	if m.SafetyProfile != "" {
		fmt.Printf("Safety profile: %s\n", m.SafetyProfile)
	}
	fmt.Printf("Auditor:        required=%v\n", m.RequiresAuditor)
	fmt.Printf("Documents:      %d\n", len(loaded.Documents()))
	return nil
}
