package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"haven-hq/warden/pkg/keyring"
)

var keysFlags struct {
	keyID       string
	scopes      []string
	description string
	expires     string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage override keys",
	Long: `Generate and inspect override keys.

Override keys gate privileged operations: switching modes, overriding
safety refusals, administering the device. The key registry stores only
SHA-256 hashes; the plaintext secret is shown exactly once at generation
time and cannot be recovered.

Examples:
  # Generate a safety override key
  warden keys generate --scopes safety_override --description "Field supervisor"

  # List registered keys
  warden keys list

  # Print a starter registry document
  warden keys template`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new override key",
	RunE:  runKeysGenerate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered keys",
	RunE:  runKeysList,
}

var keysTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print a starter key registry document",
	RunE:  runKeysTemplate,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysListCmd, keysTemplateCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.keyID, "key-id", "", "key ID (auto-generated if empty)")
	keysGenerateCmd.Flags().StringSliceVar(&keysFlags.scopes, "scopes", []string{keyring.ScopeModeControl}, "scopes granted to the key")
	keysGenerateCmd.Flags().StringVar(&keysFlags.description, "description", "", "human-readable description")
	keysGenerateCmd.Flags().StringVar(&keysFlags.expires, "expires", "", "expiry timestamp (RFC 3339)")
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	if keysFlags.expires != "" {
		if _, err := time.Parse(time.RFC3339, keysFlags.expires); err != nil {
			return fmt.Errorf("invalid --expires: %w", err)
		}
	}

	plaintext, hash, err := keyring.GenerateSecret()
	if err != nil {
		return err
	}

	keyID := keysFlags.keyID
	if keyID == "" {
		keyID = fmt.Sprintf("key-%d", time.Now().Unix())
	}

	entry := keyring.Entry{
		ID:          keyID,
		Hash:        hash,
		Scopes:      keysFlags.scopes,
		Description: keysFlags.description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		ExpiresAt:   keysFlags.expires,
	}

	out, err := yaml.Marshal(keyring.Document{Keys: []keyring.Entry{entry}})
	if err != nil {
		return err
	}

	fmt.Printf("Key ID: %s\n", keyID)
	fmt.Printf("Secret: %s\n", plaintext)
	fmt.Println()
	fmt.Println("⚠️  The secret is shown once and cannot be recovered. Store it securely.")
	fmt.Println()
	fmt.Println("Registry entry (merge into the keys of your registry file):")
	fmt.Println(string(out))
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	registry := keyring.New()
	if err := registry.LoadFile(cfg.Keys.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("no key registry at %s\n", cfg.Keys.Path)
			return nil
		}
		return err
	}

	keys := registry.ListKeys()
	if len(keys) == 0 {
		fmt.Println("no keys registered")
		return nil
	}
	for _, key := range keys {
		status := ""
		if key.Expired {
			status = " (expired)"
		}
		fmt.Printf("%-20s scopes=%v%s\n", key.ID, key.Scopes, status)
		if key.Description != "" {
			fmt.Printf("%-20s %s\n", "", key.Description)
		}
	}
	return nil
}

func runKeysTemplate(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(keyring.Template())
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
