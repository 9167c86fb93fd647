package gateway

import (
	"regexp"
	"strings"
)

// Intent is the closed set of actions an utterance can map to. Exactly one
// intent is assigned per utterance.
type Intent string

const (
	IntentResolveTicket        Intent = "resolve_ticket"
	IntentUpdateTicketStatus   Intent = "update_ticket_status"
	IntentAddTicketComment     Intent = "add_ticket_comment"
	IntentGetTicketSolution    Intent = "get_ticket_solution"
	IntentGetTicketDetails     Intent = "get_ticket_details"
	IntentCreateWikiPage       Intent = "create_confluence_page"
	IntentListWikiPages        Intent = "list_confluence_pages"
	IntentSearchWiki           Intent = "search_confluence"
	IntentCreateTicket         Intent = "create_ticket"
	IntentSearchTickets        Intent = "search_tickets"
	IntentBulkCloseTickets     Intent = "bulk_close_tickets"
	IntentSearchKnowledge      Intent = "search_knowledge"
	IntentGeneralChat          Intent = "general_chat"
)

var ticketKeyPattern = regexp.MustCompile(`(?i)\b(sup|kan)-(\d+)\b`)

// intentRule pairs a predicate with the intent it selects. Rules are
// evaluated top to bottom, first match wins; reordering them changes
// observable behavior and is a breaking change.
type intentRule struct {
	name      string
	intent    Intent
	predicate func(lower string) bool
}

var (
	resolveVerbs   = []string{"resolve", "close", "complete", "finish"}
	statusVerbs    = []string{"update", "change", "set"}
	statusNouns    = []string{"status", "state"}
	commentVerbs   = []string{"comment", "add comment", "note"}
	solutionVerbs  = []string{"solution", "solve", "fix"}
	createVerbs    = []string{"create", "new", "make"}
	docNouns       = []string{"confluence", "page", "documentation", "guide", "troubleshoot"}
	searchDocNouns = []string{"confluence", "page", "documentation"}
	ticketNouns    = []string{"ticket", "issue"}
	findVerbs      = []string{"search", "find"}
	helpWords      = []string{"help", "how", "solution", "problem"}
	bulkPhrases    = []string{"close all", "resolve all", "resolve them", "close them"}
	bulkQualifiers = []string{"all", "related", "issues", "tickets"}
	listPhrases    = []string{"list pages", "show pages", "available pages", "list confluence pages", "what pages"}
)

var intentRules = []intentRule{
	{
		name:   "bulk-close-phrases",
		intent: IntentBulkCloseTickets,
		predicate: func(lower string) bool {
			if containsAny(lower, bulkPhrases) {
				return true
			}
			return containsAny(lower, []string{"close", "resolve"}) && containsAny(lower, bulkQualifiers)
		},
	},
	{
		name:   "resolve-with-key",
		intent: IntentResolveTicket,
		predicate: func(lower string) bool {
			return containsAny(lower, resolveVerbs) && hasTicketKey(lower)
		},
	},
	{
		name:   "status-update-with-key",
		intent: IntentUpdateTicketStatus,
		predicate: func(lower string) bool {
			return containsAny(lower, statusVerbs) && containsAny(lower, statusNouns) && hasTicketKey(lower)
		},
	},
	{
		name:   "comment-with-key",
		intent: IntentAddTicketComment,
		predicate: func(lower string) bool {
			return containsAny(lower, commentVerbs) && hasTicketKey(lower)
		},
	},
	{
		name:   "solution-with-key",
		intent: IntentGetTicketSolution,
		predicate: func(lower string) bool {
			return containsAny(lower, solutionVerbs) && hasTicketKey(lower)
		},
	},
	{
		name:   "bare-ticket-key",
		intent: IntentGetTicketDetails,
		predicate: func(lower string) bool {
			return hasTicketKey(lower)
		},
	},
	{
		name:   "create-wiki-page",
		intent: IntentCreateWikiPage,
		predicate: func(lower string) bool {
			return containsAny(lower, createVerbs) && containsAny(lower, docNouns)
		},
	},
	{
		name:   "list-wiki-pages",
		intent: IntentListWikiPages,
		predicate: func(lower string) bool {
			return containsAny(lower, listPhrases)
		},
	},
	{
		name:   "search-wiki",
		intent: IntentSearchWiki,
		predicate: func(lower string) bool {
			return containsAny(lower, findVerbs) && containsAny(lower, searchDocNouns)
		},
	},
	{
		name:   "create-ticket",
		intent: IntentCreateTicket,
		predicate: func(lower string) bool {
			return containsAny(lower, []string{"create", "new"}) && containsAny(lower, ticketNouns)
		},
	},
	{
		name:   "search-tickets",
		intent: IntentSearchTickets,
		predicate: func(lower string) bool {
			return containsAny(lower, findVerbs) && containsAny(lower, ticketNouns)
		},
	},
	{
		name:   "bare-search",
		intent: IntentSearchKnowledge,
		predicate: func(lower string) bool {
			return containsAny(lower, findVerbs)
		},
	},
	{
		name:   "help-seeking",
		intent: IntentSearchKnowledge,
		predicate: func(lower string) bool {
			return containsAny(lower, helpWords)
		},
	},
}

// Classify maps an utterance to exactly one intent. Total and pure: it never
// fails and the same input always yields the same intent.
func Classify(utterance string) Intent {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return IntentGeneralChat
	}
	for _, rule := range intentRules {
		if rule.predicate(lower) {
			return rule.intent
		}
	}
	return IntentGeneralChat
}

func hasTicketKey(lower string) bool {
	return ticketKeyPattern.MatchString(lower)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
