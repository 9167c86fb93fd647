package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/gateway"
	"github.com/opsdesk/opsdesk/internal/httpapi"
	"github.com/opsdesk/opsdesk/internal/llm/ollama"
	"github.com/opsdesk/opsdesk/internal/store"
	"github.com/opsdesk/opsdesk/internal/tracker"
	"github.com/opsdesk/opsdesk/internal/wiki"
)

// Runtime wires the store, the backend clients, the gateway and the HTTP
// server into one runnable unit.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	store         *store.Store
	gateway       *gateway.Service
	prober        *Prober
	tablesWatcher *TablesWatcher
	httpServer    *http.Server
}

func NewRuntime(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	chatStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := chatStore.AutoMigrate(migrateCtx); err != nil {
		chatStore.Close()
		return nil, err
	}

	generator := ollama.New(ollama.Config{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.OllamaModel,
		Timeout: time.Duration(cfg.OllamaTimeoutSec) * time.Second,
	}, logger.With("component", "ollama"))

	jiraClient := tracker.New(tracker.Config{
		BaseURL:  cfg.JiraBaseURL,
		Username: cfg.JiraUsername,
		APIToken: cfg.JiraAPIToken,
		Timeout:  time.Duration(cfg.JiraTimeoutSec) * time.Second,
	}, logger.With("component", "jira"))

	confluenceClient := wiki.New(wiki.Config{
		BaseURL:  cfg.ConfluenceBaseURL,
		Username: cfg.JiraUsername,
		APIToken: cfg.JiraAPIToken,
		Timeout:  time.Duration(cfg.ConfluenceTimeoutSec) * time.Second,
	}, logger.With("component", "confluence"))

	tables, err := config.LoadRoutingTables(cfg.RoutingTablesFile)
	if err != nil {
		logger.Warn("routing tables load failed, using defaults", "error", err)
	}

	var identity gateway.IdentityResolver
	if cfg.AutoAssignTickets {
		identity = jiraClient
	}
	gatewaySvc := gateway.NewService(
		logger.With("component", "gateway"),
		generator,
		jiraClient,
		confluenceClient,
		chatStore,
		identity,
		gateway.NewPatterns(tables),
		gateway.Options{
			ProjectKey:       cfg.JiraProjectKey,
			SpaceKey:         cfg.ConfluenceSpaceKey,
			ContextTurns:     cfg.ContextTurns,
			SearchMaxResults: cfg.SearchMaxResults,
			AutoAssign:       cfg.AutoAssignTickets,
		},
	)

	prober := NewProber(jiraClient, confluenceClient, cfg.ProbeSpec, cfg.ProbeOnStart, logger.With("component", "prober"))

	var tablesWatcher *TablesWatcher
	if cfg.RoutingTablesFile != "" {
		tablesWatcher, err = NewTablesWatcher(cfg.RoutingTablesFile, gatewaySvc, logger.With("component", "tables-watcher"))
		if err != nil {
			chatStore.Close()
			return nil, err
		}
	}

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:       cfg,
		Store:        chatStore,
		Gateway:      gatewaySvc,
		Capabilities: prober,
		Logger:       logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:           cfg,
		logger:        logger,
		store:         chatStore,
		gateway:       gatewaySvc,
		prober:        prober,
		tablesWatcher: tablesWatcher,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}
