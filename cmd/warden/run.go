package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"haven-hq/warden/pkg/audit"
	auditindex "haven-hq/warden/pkg/audit/index"
	"haven-hq/warden/pkg/config"
	"haven-hq/warden/pkg/keyring"
	"haven-hq/warden/pkg/llm"
	"haven-hq/warden/pkg/pack"
	"haven-hq/warden/pkg/pipeline"
	"haven-hq/warden/pkg/policy"
	"haven-hq/warden/pkg/profile"
	"haven-hq/warden/pkg/remote"
	"haven-hq/warden/pkg/telemetry/health"
	"haven-hq/warden/pkg/telemetry/logging"
	"haven-hq/warden/pkg/telemetry/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive appliance",
	Long: `Start the appliance and answer queries on standard input.

Every line is treated as a query and run through the worker, auditor,
and resolver. Lines starting with / are commands:

  /help                 show commands
  /status               show device status
  /module <id>          select the knowledge module for queries
  /mode <mode> [key]    switch operating mode
  /override <key>       reveal the last withheld response with a valid key
  /profile <file>       load a profile envelope from a JSON file
  /profile clear        clear the active profile
  /bundle <file>        apply a signed control bundle from a JSON file
  /poll                 poll registered bundle channels
  /health               check model backends and the audit chain
  /verify               verify audit chain integrity
  /quit                 shut down`,
}

func init() {
	runCmd.RunE = runAppliance
	rootCmd.AddCommand(runCmd)
}

// appliance holds every wired subsystem of a running device.
type appliance struct {
	cfg      *config.Config
	pol      *policy.Policy
	log      *audit.Log
	index    *auditindex.SQLite
	registry *keyring.Registry
	sweeper  *keyring.Sweeper
	loader   *pack.Loader
	profiles *profile.Manager
	remote   *remote.Manager
	pipe     *pipeline.Pipeline
	health   *health.Checker
	metrics  *metrics.Metrics
	watcher  *policy.Watcher
	httpSrv  *http.Server

	module       string
	lastDecision *pipeline.Decision
}

func runAppliance(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	if _, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	}); err != nil {
		return err
	}

	app, err := newAppliance(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.recordAudit(audit.EventStartup, map[string]any{
		"device_id": app.pol.DeviceID(),
		"mode":      string(app.pol.CurrentMode()),
		"packs":     app.loader.Loaded(),
	})

	fmt.Printf("warden %s ready on device %s (mode: %s)\n", Version, app.pol.DeviceID(), app.pol.CurrentMode())
	fmt.Println("type a query, /help for commands")

	app.repl(ctx)

	app.recordAudit(audit.EventShutdown, nil)
	return nil
}

func newAppliance(cfg *config.Config) (*appliance, error) {
	app := &appliance{cfg: cfg}

	app.pol = policy.New()
	if err := app.pol.Load(cfg.Policy.Path); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	// The policy may demand stricter redaction than the runtime config.
	redaction := audit.RedactionLevel(cfg.Audit.Redaction)
	if policyLevel := app.pol.RedactionLevel(); policyLevel == audit.RedactionStrict {
		redaction = policyLevel
	}

	var indexer audit.Indexer
	if cfg.Audit.Index.Enabled {
		idx, err := auditindex.Open(cfg.Audit.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit index: %w", err)
		}
		app.index = idx
		indexer = idx
	}

	log, err := audit.Open(audit.Config{
		Path:      cfg.Audit.Path,
		DeviceID:  app.pol.DeviceID(),
		Redaction: redaction,
		Indexer:   indexer,
	})
	if err != nil {
		return nil, err
	}
	app.log = log

	app.metrics = metrics.New(metrics.Config{
		Enabled: cfg.Telemetry.Metrics.Enabled,
		Listen:  cfg.Telemetry.Metrics.ListenAddress,
	})
	if app.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Telemetry.Metrics.Path, app.metrics.Handler())
		app.httpSrv = &http.Server{
			Addr:              cfg.Telemetry.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := app.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	if cfg.Policy.Watch {
		watcher, err := policy.NewWatcher(app.pol, cfg.Policy.Path, func() {
			app.recordAudit(audit.EventPolicyChanged, map[string]any{"path": cfg.Policy.Path})
		})
		if err != nil {
			return nil, err
		}
		app.watcher = watcher
	}

	app.registry = keyring.New()
	app.registry.SetSessionTTL(cfg.Session.TTL)
	app.registry.SetAuditFunc(app.recordAudit)
	if err := app.registry.LoadFile(cfg.Keys.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	sweeper, err := keyring.NewSweeper(app.registry, cfg.Session.SweepSchedule)
	if err != nil {
		return nil, err
	}
	app.sweeper = sweeper
	sweeper.Start()

	app.loader = pack.NewLoader(cfg.Packs.Dir)
	app.loader.SetAuditFunc(app.recordAudit)
	manifests, err := app.loader.Discover()
	if err != nil {
		slog.Warn("pack discovery failed", "dir", cfg.Packs.Dir, "error", err)
	}
	for _, m := range manifests {
		if enabled, _ := app.pol.Get("modules."+m.ID+".enabled", false).(bool); !enabled {
			continue
		}
		if _, err := app.loader.Load(m.ID); err != nil {
			slog.Warn("pack load failed", "pack", m.ID, "error", err)
		}
	}
	if loaded := app.loader.Loaded(); len(loaded) == 1 {
		app.module = loaded[0]
	}

	app.profiles = profile.NewManager(app.pol)
	app.profiles.SetAuditFunc(app.recordAudit)

	app.remote = remote.NewManager(app.pol)
	app.remote.SetAuditFunc(app.recordAudit)
	for _, issuer := range cfg.Remote.Issuers {
		app.remote.RegisterIssuer(issuer)
	}
	if cfg.Remote.Git.URL != "" {
		gitTransport, err := remote.NewGitTransport(remote.GitTransportConfig{
			URL:       cfg.Remote.Git.URL,
			Branch:    cfg.Remote.Git.Branch,
			Dir:       cfg.Remote.Git.Dir,
			LocalPath: cfg.Remote.Git.LocalPath,
			Username:  cfg.Remote.Git.Username,
			Token:     cfg.Remote.Git.Token,
		})
		if err != nil {
			return nil, err
		}
		app.remote.RegisterTransport(remote.TransportInternet, gitTransport)
	}

	worker, err := llm.New(modelConfig(cfg.LLM.Worker))
	if err != nil {
		return nil, err
	}
	auditor, err := llm.New(modelConfig(cfg.LLM.Auditor))
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Config{
		Worker:    worker,
		Auditor:   auditor,
		Policy:    app.pol,
		AuditFunc: app.recordAudit,
		Metrics:   app.metrics.PipelineGroup(),
	})
	if err != nil {
		return nil, err
	}
	app.pipe = pipe

	app.health = health.New(0)
	app.health.Register("worker_model", modelCheck(worker))
	app.health.Register("auditor_model", modelCheck(auditor))
	app.health.Register("audit_chain", func(ctx context.Context) error {
		ok, issues, err := app.log.VerifyIntegrity()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chain broken, %d issues", len(issues))
		}
		return nil
	})

	return app, nil
}

func modelCheck(g llm.Generator) health.CheckFunc {
	return func(ctx context.Context) error {
		if !g.Available(ctx) {
			return fmt.Errorf("%s backend unavailable", g.Name())
		}
		return nil
	}
}

func modelConfig(cfg config.ModelConfig) llm.Config {
	return llm.Config{
		Backend:     cfg.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// recordAudit appends to the chain and mirrors the event type into the
// metrics counters.
func (app *appliance) recordAudit(eventType audit.EventType, details map[string]any) {
	if _, err := app.log.Append(eventType, details, ""); err != nil {
		slog.Error("audit append failed", "event_type", string(eventType), "error", err)
		app.metrics.AuditGroup().RecordAppendError()
		return
	}
	app.metrics.AuditGroup().RecordEvent(string(eventType))
}

func (app *appliance) close() {
	if app.watcher != nil {
		app.watcher.Close()
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		app.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if app.index != nil {
		app.index.Close()
	}
}

func (app *appliance) repl(ctx context.Context) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := app.handleCommand(ctx, line); quit {
					return
				}
				continue
			}
			app.handleQuery(ctx, line)
		}
	}
}

func (app *appliance) handleCommand(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(runCmd.Long)

	case "/status":
		out, _ := json.MarshalIndent(app.pol.StatusSummary(), "", "  ")
		fmt.Println(string(out))
		fmt.Printf("packs loaded: %v\n", app.loader.Loaded())
		fmt.Printf("active sessions: %d\n", app.registry.ActiveSessions())

	case "/module":
		if len(fields) < 2 {
			fmt.Printf("current module: %s\n", app.module)
			return
		}
		if eval := app.pol.CanUseModule(fields[1]); !eval.Allowed {
			fmt.Printf("refused: %s\n", eval.Reason)
			return
		}
		if _, ok := app.loader.Get(fields[1]); !ok {
			fmt.Printf("module %q is not loaded (installed: %v)\n", fields[1], app.loader.Loaded())
			return
		}
		app.module = fields[1]
		fmt.Printf("module set to %s\n", app.module)

	case "/mode":
		if len(fields) < 2 {
			fmt.Printf("current mode: %s\n", app.pol.CurrentMode())
			return
		}
		key := ""
		if len(fields) > 2 {
			key = fields[2]
		}
		app.switchMode(fields[1], key)

	case "/override":
		if len(fields) < 2 {
			fmt.Println("usage: /override <key>")
			return
		}
		app.applyOverride(fields[1])

	case "/profile":
		if len(fields) < 2 {
			fmt.Println("usage: /profile <file> | /profile clear")
			return
		}
		if fields[1] == "clear" {
			app.profiles.Clear()
			fmt.Println("profile cleared")
			return
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		v := app.profiles.LoadJSON(data)
		if !v.Valid {
			fmt.Printf("profile rejected: %s\n", v.Err)
			return
		}
		for _, w := range v.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("profile %s loaded\n", v.Profile.ProfileID)

	case "/bundle":
		if len(fields) < 2 {
			fmt.Println("usage: /bundle <file>")
			return
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		var bundle remote.Bundle
		if err := json.Unmarshal(data, &bundle); err != nil {
			fmt.Printf("invalid bundle: %v\n", err)
			return
		}
		result := app.remote.Apply(&bundle)
		if result.Success {
			fmt.Printf("applied: %s\n", result.ActionTaken)
		} else {
			fmt.Printf("rejected: %s\n", result.Err)
		}

	case "/health":
		report := app.health.Run(ctx)
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))

	case "/poll":
		results := app.remote.PollAll(ctx)
		if len(results) == 0 {
			fmt.Println("no bundles pending")
			return
		}
		for _, result := range results {
			if result.Success {
				fmt.Printf("%s: %s\n", result.BundleID, result.ActionTaken)
			} else {
				fmt.Printf("%s: rejected (%s)\n", result.BundleID, result.Err)
			}
		}

	case "/verify":
		ok, issues, err := app.log.VerifyIntegrity()
		switch {
		case err != nil:
			fmt.Printf("error: %v\n", err)
		case ok:
			fmt.Println("✓ audit chain intact")
			app.metrics.AuditGroup().SetIntegrityOK(true)
		default:
			fmt.Printf("✗ audit chain broken: %d issues\n", len(issues))
			app.metrics.AuditGroup().SetIntegrityOK(false)
		}

	default:
		fmt.Printf("unknown command %s, /help for commands\n", fields[0])
	}
	return false
}

func (app *appliance) switchMode(target, key string) {
	eval := app.pol.CanSwitchMode(policy.Mode(target))
	if !eval.Allowed {
		fmt.Printf("refused: %s\n", eval.Reason)
		return
	}
	if eval.RequiresKey {
		if key == "" {
			fmt.Printf("mode switch requires a key with scope %s\n", eval.KeyScope)
			return
		}
		validation := app.registry.Validate(key, eval.KeyScope)
		if !validation.Valid {
			app.metrics.KeyringGroup().RecordValidation("failed")
			fmt.Printf("refused: %s\n", validation.Reason)
			return
		}
		app.metrics.KeyringGroup().RecordValidation("success")
	}

	previous := app.pol.CurrentMode()
	if err := app.pol.SetMode(policy.Mode(target)); err != nil {
		fmt.Printf("refused: %v\n", err)
		return
	}
	app.recordAudit(audit.EventModeChange, map[string]any{
		"from": string(previous),
		"to":   target,
	})
	fmt.Printf("mode switched to %s\n", target)
}

func (app *appliance) applyOverride(key string) {
	last := app.lastDecision
	if last == nil || !last.OverrideAvailable {
		fmt.Println("no overridable decision pending")
		return
	}

	session, err := app.registry.CreateOverrideSession(key, last.OverrideScope, map[string]any{
		"action": string(last.Action),
	}, app.cfg.Session.TTL)
	if err != nil {
		app.metrics.KeyringGroup().RecordValidation("failed")
		fmt.Printf("refused: %v\n", err)
		return
	}
	app.metrics.KeyringGroup().RecordValidation("success")
	app.metrics.KeyringGroup().RecordSessionCreated()
	app.metrics.KeyringGroup().SetActiveSessions(app.registry.ActiveSessions())

	app.recordAudit(audit.EventOverrideUsed, map[string]any{
		"session_id": session.ID,
		"scope":      last.OverrideScope,
	})

	fmt.Printf("override granted (session %s, expires %s)\n", session.ID, session.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(last.WithheldResponse)
	fmt.Println()
	fmt.Println("note: this response was withheld by the safety auditor")
}

func (app *appliance) handleQuery(ctx context.Context, query string) {
	qc := &pipeline.QueryContext{
		Module:       app.module,
		Mode:         string(app.pol.CurrentMode()),
		ReadingLevel: app.profiles.EffectiveReadingLevel(),
	}
	if loaded, ok := app.loader.Get(app.module); ok {
		qc.Knowledge = loaded.KnowledgeContext(query, 5)
		qc.SafetyProfile = loaded.Manifest.SafetyProfile
	}

	decision, err := app.pipe.Run(ctx, query, qc)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	app.lastDecision = decision

	fmt.Println()
	fmt.Println(decision.Response)
	for _, caveat := range decision.Caveats {
		fmt.Printf("  ⚠ %s\n", caveat)
	}
	if decision.OverrideAvailable {
		fmt.Printf("  (a key with scope %s can override this: /override <key>)\n", decision.OverrideScope)
	}
	fmt.Println()
}
