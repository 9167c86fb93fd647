package gateway

import (
	"regexp"
	"strings"

	"github.com/opsdesk/opsdesk/internal/config"
)

// Patterns holds the compiled keyword tables the handlers consult. Compiled
// once per table load; safe for concurrent reads.
type Patterns struct {
	statusRules []config.StatusKeywordRule
	aliases     []config.TopicAlias
	stopWords   map[string]struct{}
}

func NewPatterns(tables config.RoutingTables) *Patterns {
	stop := make(map[string]struct{}, len(tables.StopWords))
	for _, word := range tables.StopWords {
		stop[strings.ToLower(word)] = struct{}{}
	}
	return &Patterns{
		statusRules: tables.StatusKeywords,
		aliases:     tables.TopicAliases,
		stopWords:   stop,
	}
}

// TicketKey returns the first tracker key in the utterance, normalized to
// upper case, or "" when none is present.
func (p *Patterns) TicketKey(utterance string) string {
	match := ticketKeyPattern.FindString(utterance)
	return strings.ToUpper(match)
}

// StatusTarget maps the utterance onto a canonical tracker status using the
// ordered keyword table. Returns "" when no rule matches.
func (p *Patterns) StatusTarget(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, rule := range p.statusRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return rule.Status
			}
		}
	}
	return ""
}

// commentMarkerPattern requires an explicit comment/note marker followed by a
// colon. Without it the comment body is ambiguous, so the handler asks.
var commentMarkerPattern = regexp.MustCompile(`(?i)\b(?:comment|note)\s*(?:(?:to|on)\s+\w+-\d+)?\s*:\s*(.+)`)

// CommentText pulls the comment body out of an utterance. Returns "" when no
// marker colon is present; the caller replies with a usage hint.
func (p *Patterns) CommentText(utterance string) string {
	match := commentMarkerPattern.FindStringSubmatch(utterance)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// resolutionMarkers introduce a user-supplied resolution note. Checked in
// order; the longest marker first so "with comment" is not split.
var resolutionMarkers = []string{"with comment", "comment", "note:"}

// ResolutionComment pulls a user-supplied note out of a resolve utterance.
// Returns "" when no marker is present; the caller supplies the default.
func (p *Patterns) ResolutionComment(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, marker := range resolutionMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := utterance[idx+len(marker):]
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
		return strings.TrimSpace(rest)
	}
	return ""
}

// CleanSearchTerms strips stop words and returns the remaining words joined
// as a search query. An utterance made entirely of stop words yields "".
func (p *Patterns) CleanSearchTerms(utterance string) string {
	var kept []string
	for _, word := range strings.Fields(strings.ToLower(utterance)) {
		trimmed := strings.Trim(word, ".,!?\"'")
		if trimmed == "" {
			continue
		}
		if _, isStop := p.stopWords[trimmed]; isStop {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}

// BulkTopic derives the search phrase for a bulk close. Curated topic
// aliases are checked first; each alias fires only when all of its keywords
// appear. Falls back to the first three meaningful words after stop-word
// stripping. Best-effort term derivation, not exact-match search.
func (p *Patterns) BulkTopic(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, alias := range p.aliases {
		if len(alias.Keywords) == 0 {
			continue
		}
		matched := true
		for _, keyword := range alias.Keywords {
			if !strings.Contains(lower, strings.ToLower(keyword)) {
				matched = false
				break
			}
		}
		if matched {
			return alias.Phrase
		}
	}

	words := strings.Fields(p.CleanSearchTerms(utterance))
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}
