package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"haven-hq/warden/pkg/audit"
	"haven-hq/warden/pkg/audit/export"
)

var auditFlags struct {
	eventTypes []string
	sessionID  string
	from       string
	to         string
	limit      int
	format     string
	output     string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the tamper-evident audit log",
	Long: `Query, verify, and export the hash-chained audit log.

The log is an append-only JSONL file where every record carries a
checksum over its own content and the checksum of the record before it.
Any edit, deletion, or reordering breaks the chain and is reported by
the verify subcommand.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events",
	Long: `Query audit events with optional filters.

Examples:
  # Last 20 resolver decisions
  warden audit query --type resolver_decision --limit 20

  # Everything in one session
  warden audit query --session 5a3c...

  # A time window
  warden audit query --from 2026-08-01T00:00:00Z --to 2026-08-02T00:00:00Z`,
	RunE: runAuditQuery,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit chain integrity",
	RunE:  runAuditVerify,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit log statistics",
	RunE:  runAuditStats,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit events to JSONL or CSV",
	RunE:  runAuditExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditVerifyCmd, auditStatsCmd, auditExportCmd)

	for _, cmd := range []*cobra.Command{auditQueryCmd, auditExportCmd} {
		cmd.Flags().StringSliceVar(&auditFlags.eventTypes, "type", nil, "event types to include")
		cmd.Flags().StringVar(&auditFlags.sessionID, "session", "", "restrict to one session")
		cmd.Flags().StringVar(&auditFlags.from, "from", "", "start of time window (RFC 3339)")
		cmd.Flags().StringVar(&auditFlags.to, "to", "", "end of time window (RFC 3339)")
		cmd.Flags().IntVar(&auditFlags.limit, "limit", 0, "maximum events (0 uses the default)")
	}
	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "jsonl", "export format: jsonl or csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (stdout when empty)")
}

func openAuditLog() (*audit.Log, error) {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return nil, err
	}
	return audit.Open(audit.Config{
		Path:      cfg.Audit.Path,
		Redaction: audit.RedactionLevel(cfg.Audit.Redaction),
	})
}

func buildFilter() (audit.Filter, error) {
	filter := audit.Filter{
		SessionID: auditFlags.sessionID,
		Limit:     auditFlags.limit,
	}
	for _, t := range auditFlags.eventTypes {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if auditFlags.from != "" {
		from, err := time.Parse(time.RFC3339, auditFlags.from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from: %w", err)
		}
		filter.From = from
	}
	if auditFlags.to != "" {
		to, err := time.Parse(time.RFC3339, auditFlags.to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to: %w", err)
		}
		filter.To = to
	}
	return filter, nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}
	filter, err := buildFilter()
	if err != nil {
		return err
	}

	events, err := log.Query(filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "%d events\n", len(events))
	}
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}

	ok, issues, err := log.VerifyIntegrity()
	if err != nil {
		return err
	}
	if ok {
		fmt.Println("✓ audit chain intact")
		return nil
	}

	fmt.Printf("✗ audit chain broken: %d issues\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  line %d [%s]: %s\n", issue.Line, issue.Kind, issue.Message)
	}
	os.Exit(1)
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}

	stats, err := log.Stats()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}
	filter, err := buildFilter()
	if err != nil {
		return err
	}

	var exporter export.Exporter
	switch auditFlags.format {
	case "jsonl":
		exporter = export.JSONL{}
	case "csv":
		exporter = export.CSV{}
	default:
		return fmt.Errorf("unknown export format %q (jsonl or csv)", auditFlags.format)
	}

	if auditFlags.output == "" {
		events, err := log.Query(filter)
		if err != nil {
			return err
		}
		return exporter.Export(events, os.Stdout)
	}

	n, err := export.WriteFile(log, auditFlags.output, filter, exporter)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d events to %s\n", n, auditFlags.output)
	return nil
}
