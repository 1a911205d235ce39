package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/config"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/relay"
	"github.com/h0rv/issuedeck/internal/store"
)

// session holds everything a command needs, wired from configuration.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	override relay.Chain
	resolver *relay.Resolver
	client   *jira.Client
	engine   *reconcile.Engine
	logFile  *os.File
}

// openSession loads configuration and wires the store, relays, client and
// engine. Interactive sessions log to a file next to the store instead of
// stderr.
func openSession(cmd *cobra.Command, interactive bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sess := &session{cfg: cfg}

	var out io.Writer = cmd.ErrOrStderr()
	if interactive {
		out = io.Discard
		if verbose {
			path := filepath.Join(filepath.Dir(cfg.StorePath), "issuedeck.log")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
				if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
					sess.logFile = f
					out = f
				}
			}
		}
	}
	sess.logger = newLogger(out)
	slog.SetDefault(sess.logger)

	s, err := store.Open(cfg.StorePath, sess.logger)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	sess.store = s

	// Flag, then stored setting, then config file, then environment.
	sess.override = relay.Chain{
		relay.StaticOverride(relayURL),
		s,
		relay.StaticOverride(cfg.RelayURL),
		relay.EnvOverride{},
	}
	sess.resolver = relay.NewResolver(relay.DefaultTemplates, sess.override)
	sess.client = jira.New(cfg.BaseURL, sess.resolver,
		jira.WithLogger(sess.logger),
		jira.WithProjectLimit(cfg.ProjectLimit))
	sess.engine = reconcile.NewEngine(sess.client, s, sess.logger)

	sess.logger.Debug("session ready",
		slog.String("base_url", cfg.BaseURL),
		slog.String("store", cfg.StorePath),
		slog.Int("relays", len(sess.resolver.Templates())))
	return sess, nil
}

func (s *session) close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// statsPolicy returns the configured statistics policy, with the stored
// toggle taking precedence over the config file.
func (s *session) statsPolicy() jira.StatsPolicy {
	policy := s.cfg.StatsPolicy()
	if enabled, ok := s.store.FetchStats(); ok {
		policy.Enabled = enabled
	}
	return policy
}

// loadConfig reads the config file (defaults when absent), applies the
// environment and then any flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	manager := config.NewManager()
	path := configPath
	if path == "" {
		path = manager.DefaultConfigPath()
	}

	cfg, err := manager.LoadConfigWithFallback(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = baseURL
	}
	if flags.Changed("store") {
		cfg.StorePath = storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
