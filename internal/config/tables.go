package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoutingTables holds the operator-tunable keyword tables used by the
// gateway's pattern matching. The compiled-in defaults match the tracker's
// workflow; a YAML file extends or replaces them without a rebuild.
type RoutingTables struct {
	// StatusKeywords maps canonical tracker status names to trigger words.
	// Order is significant: the first matching status wins.
	StatusKeywords []StatusKeywordRule `yaml:"status_keywords"`

	// TopicAliases collapses co-occurring keywords into a canonical search
	// phrase for bulk operations. A hand-curated allowlist, not an algorithm.
	TopicAliases []TopicAlias `yaml:"topic_aliases"`

	// StopWords are stripped from utterances before search-term derivation.
	StopWords []string `yaml:"stop_words"`
}

type StatusKeywordRule struct {
	Status   string   `yaml:"status"`
	Keywords []string `yaml:"keywords"`
}

type TopicAlias struct {
	// All listed keywords must appear in the utterance for the alias to fire.
	Keywords []string `yaml:"keywords"`
	Phrase   string   `yaml:"phrase"`
}

func DefaultRoutingTables() RoutingTables {
	return RoutingTables{
		StatusKeywords: []StatusKeywordRule{
			{Status: "Pågående", Keywords: []string{"progress", "start", "working", "pågående", "in progress"}},
			{Status: "Pending", Keywords: []string{"pending", "review", "waiting"}},
			{Status: "Done", Keywords: []string{"done", "complete", "finished"}},
			{Status: "Closed", Keywords: []string{"closed", "close"}},
		},
		TopicAliases: []TopicAlias{
			{Keywords: []string{"windows", "login"}, Phrase: "windows login"},
			{Keywords: []string{"printer"}, Phrase: "printer"},
			{Keywords: []string{"vpn"}, Phrase: "vpn"},
			{Keywords: []string{"email", "outlook"}, Phrase: "outlook email"},
		},
		StopWords: []string{
			"search", "find", "ticket", "tickets", "issue", "issues", "articles",
			"can", "you", "a", "the", "for", "about", "regarding", "with",
			"all", "close", "resolve", "related", "to", "please", "and",
		},
	}
}

// LoadRoutingTables reads the YAML table file. Missing sections fall back to
// the compiled-in defaults so a partial file stays valid.
func LoadRoutingTables(path string) (RoutingTables, error) {
	defaults := DefaultRoutingTables()
	if path == "" {
		return defaults, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read routing tables: %w", err)
	}

	var loaded RoutingTables
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return defaults, fmt.Errorf("parse routing tables: %w", err)
	}
	if len(loaded.StatusKeywords) == 0 {
		loaded.StatusKeywords = defaults.StatusKeywords
	}
	if len(loaded.TopicAliases) == 0 {
		loaded.TopicAliases = defaults.TopicAliases
	}
	if len(loaded.StopWords) == 0 {
		loaded.StopWords = defaults.StopWords
	}
	return loaded, nil
}
