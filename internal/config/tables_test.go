package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRoutingTablesStatusOrder(t *testing.T) {
	tables := DefaultRoutingTables()
	if len(tables.StatusKeywords) < 4 {
		t.Fatalf("expected at least 4 status rules, got %d", len(tables.StatusKeywords))
	}
	if tables.StatusKeywords[0].Status != "Pågående" {
		t.Fatalf("in-progress status must be first, got %s", tables.StatusKeywords[0].Status)
	}
	if tables.StatusKeywords[len(tables.StatusKeywords)-1].Status != "Closed" {
		t.Fatalf("closed status must be last")
	}
}

func TestLoadRoutingTablesMissingFileFallsBack(t *testing.T) {
	tables, err := LoadRoutingTables(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected read error for absent file")
	}
	if len(tables.StatusKeywords) == 0 {
		t.Fatalf("expected defaults on read failure")
	}
}

func TestLoadRoutingTablesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `topic_aliases:
  - keywords: ["database", "timeout"]
    phrase: "database timeout"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	tables, err := LoadRoutingTables(path)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	if len(tables.TopicAliases) != 1 || tables.TopicAliases[0].Phrase != "database timeout" {
		t.Fatalf("alias not loaded: %+v", tables.TopicAliases)
	}
	if len(tables.StatusKeywords) == 0 || len(tables.StopWords) == 0 {
		t.Fatalf("missing sections must fall back to defaults")
	}
}
