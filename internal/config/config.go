package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	RoutingTablesFile string
	ContextTurns      int
	SearchMaxResults  int

	ProbeSpec    string
	ProbeOnStart bool

	JiraBaseURL    string
	JiraUsername   string
	JiraAPIToken   string
	JiraProjectKey string
	JiraTimeoutSec int

	ConfluenceBaseURL    string
	ConfluenceSpaceKey   string
	ConfluenceTimeoutSec int

	OllamaBaseURL    string
	OllamaModel      string
	OllamaTimeoutSec int

	AutoAssignTickets bool

	APIBaseURL     string
	ChatTimeoutSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("OPSDESK_DATA_DIR", "/data")
	dbPath := stringOrDefault("OPSDESK_DB_PATH", filepath.Join(dataDir, "opsdesk", "chat.sqlite"))

	return Config{
		Environment: stringOrDefault("OPSDESK_ENV", "development"),
		HTTPAddr:    stringOrDefault("OPSDESK_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		RoutingTablesFile: strings.TrimSpace(os.Getenv("OPSDESK_ROUTING_TABLES_FILE")),
		ContextTurns:      intOrDefault("OPSDESK_CONTEXT_TURNS", 5),
		SearchMaxResults:  intOrDefault("OPSDESK_SEARCH_MAX_RESULTS", 5),

		ProbeSpec:    stringOrDefault("OPSDESK_PROBE_SCHEDULE", "@every 30s"),
		ProbeOnStart: boolOrDefault("OPSDESK_PROBE_ON_START", true),

		JiraBaseURL:    strings.TrimSpace(os.Getenv("OPSDESK_JIRA_BASE_URL")),
		JiraUsername:   strings.TrimSpace(os.Getenv("OPSDESK_JIRA_USERNAME")),
		JiraAPIToken:   os.Getenv("OPSDESK_JIRA_API_TOKEN"),
		JiraProjectKey: stringOrDefault("OPSDESK_JIRA_PROJECT_KEY", "SUP"),
		JiraTimeoutSec: intOrDefault("OPSDESK_JIRA_TIMEOUT_SECONDS", 30),

		ConfluenceBaseURL:    strings.TrimSpace(os.Getenv("OPSDESK_CONFLUENCE_BASE_URL")),
		ConfluenceSpaceKey:   stringOrDefault("OPSDESK_CONFLUENCE_SPACE_KEY", "ITSUPPORT"),
		ConfluenceTimeoutSec: intOrDefault("OPSDESK_CONFLUENCE_TIMEOUT_SECONDS", 30),

		OllamaBaseURL:    stringOrDefault("OPSDESK_OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      stringOrDefault("OPSDESK_OLLAMA_MODEL", "llama3:latest"),
		OllamaTimeoutSec: intOrDefault("OPSDESK_OLLAMA_TIMEOUT_SECONDS", 120),

		AutoAssignTickets: boolOrDefault("OPSDESK_AUTO_ASSIGN_TICKETS", false),

		APIBaseURL:     stringOrDefault("OPSDESK_API_BASE_URL", "http://localhost:8080"),
		ChatTimeoutSec: intOrDefault("OPSDESK_CHAT_TIMEOUT_SECONDS", 180),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
