// Package app assembles the vault from its parts.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/realarmaansidhu/NuestraBoveda/common/environment"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/audit"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/gate"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ghostwriter"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/httpapi"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/oracle"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/persona"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/secrets"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/session"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/store"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/vault"
)

// Config holds application configuration.
type Config struct {
	// HTTPAddr is the TCP address the API listens on.
	HTTPAddr string
	// VaultDir is the directory holding the archive (assets, the
	// memories index and the chat transcript, sealed or plaintext).
	VaultDir string
	// TranscriptPath is the chat export feeding the ghost writer,
	// relative to VaultDir.
	TranscriptPath string
	// SecretsFile is an optional YAML file of managed secrets,
	// consulted before the environment.
	SecretsFile string
	// PersonasFile is an optional YAML file replacing the built-in
	// persona pair.
	PersonasFile string
	// DatabasePath is the sqlite audit trail. Empty disables auditing.
	DatabasePath string
	// ProviderTimeout bounds each provider attempt in the chain.
	ProviderTimeout time.Duration
	// SessionTTL is how long an idle session survives.
	SessionTTL time.Duration
	// JanitorInterval is the idle-session sweep cadence.
	JanitorInterval time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ConfigFromEnv builds a Config from BOVEDA_* environment variables,
// falling back to the package defaults for anything unset.
func ConfigFromEnv() Config {
	return Config{
		HTTPAddr:        environment.StringOr("BOVEDA_HTTP_ADDR", ":8080"),
		VaultDir:        environment.StringOr("BOVEDA_VAULT_DIR", "."),
		TranscriptPath:  environment.StringOr("BOVEDA_CHAT_TRANSCRIPT", vault.DefaultTranscriptPath),
		SecretsFile:     environment.String("BOVEDA_SECRETS_FILE"),
		PersonasFile:    environment.String("BOVEDA_PERSONAS_FILE"),
		DatabasePath:    environment.StringOr("BOVEDA_DB_PATH", "boveda.db"),
		ProviderTimeout: environment.DurationOr("BOVEDA_PROVIDER_TIMEOUT", ensemble.DefaultTimeout),
		SessionTTL:      environment.DurationOr("BOVEDA_SESSION_TTL", session.DefaultTTL),
		JanitorInterval: environment.DurationOr("BOVEDA_JANITOR_INTERVAL", time.Minute),
	}
}

// App is the assembled application.
type App struct {
	config   Config
	logger   *slog.Logger
	store    *store.Store
	sessions *session.Manager
	chain    *ensemble.Ensemble
	server   *httpapi.Server
}

// New assembles the application. A missing audit database or an empty
// provider chain degrades with a logged warning; a malformed secrets
// or personas file fails the boot.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Secrets: the managed file is consulted before the environment.
	sources := make([]secrets.Source, 0, 2)
	if cfg.SecretsFile != "" {
		fileSource, err := secrets.NewFileSource(cfg.SecretsFile)
		if err != nil {
			return nil, fmt.Errorf("app: load secrets file: %w", err)
		}
		sources = append(sources, fileSource)
		logger.Info("app: managed secrets file loaded", "path", cfg.SecretsFile)
	}
	sources = append(sources, secrets.EnvSource{})
	resolver := secrets.NewResolver(sources...)

	// Audit trail. A broken database never blocks the vault.
	var st *store.Store
	var recorder audit.Recorder = audit.Noop{}
	if cfg.DatabasePath != "" {
		opened, err := store.New(cfg.DatabasePath)
		if err != nil {
			logger.Warn("app: audit database unavailable, events will be dropped",
				"path", cfg.DatabasePath, "error", err)
		} else {
			st = opened
			recorder = audit.NewSQLite(st, logger)
			logger.Info("app: audit trail ready", "path", cfg.DatabasePath)
		}
	}

	archive := vault.New(vault.Config{
		BaseDir:        cfg.VaultDir,
		TranscriptPath: cfg.TranscriptPath,
		Secrets:        resolver,
		Logger:         logger,
	})
	logger.Info("app: archive mounted", "dir", cfg.VaultDir)

	personas, err := persona.Load(cfg.PersonasFile)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, fmt.Errorf("app: load personas: %w", err)
	}
	logger.Info("app: personas ready", "names", personas.Names())

	chain := ensemble.New(ctx, ensemble.Config{
		Secrets: resolver,
		Timeout: cfg.ProviderTimeout,
		Logger:  logger,
	})

	sessions := session.NewManager(session.Config{TTL: cfg.SessionTTL, Logger: logger})

	server := httpapi.New(httpapi.Config{
		Addr:     cfg.HTTPAddr,
		Gate:     gate.New(gate.Config{}),
		Sessions: sessions,
		Vault:    archive,
		Personas: personas,
		Oracle: oracle.New(oracle.Config{
			Generator: chain,
			Memories:  archive,
			Personas:  personas,
			Logger:    logger,
		}),
		Ghost: ghostwriter.New(ghostwriter.Config{
			Generator: chain,
			History:   archive,
			Personas:  personas,
			Logger:    logger,
		}),
		Chain:   chain,
		Secrets: resolver,
		Store:   st,
		Audit:   recorder,
		Logger:  logger,
	})

	return &App{
		config:   cfg,
		logger:   logger,
		store:    st,
		sessions: sessions,
		chain:    chain,
		server:   server,
	}, nil
}

// Run starts the HTTP server and the session janitor, then blocks
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.sessions.Janitor(ctx, a.config.JanitorInterval)

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("app: vault is open", "addr", a.config.HTTPAddr)

	<-ctx.Done()
	a.logger.Info("app: shutting down")
	return nil
}

// Handler exposes the HTTP surface without a live listener, for tests
// and embedding.
func (a *App) Handler() *httpapi.Server { return a.server }

// Close releases provider clients and the audit database.
func (a *App) Close() {
	a.chain.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("app: close audit database", "error", err)
		}
	}
}
