package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsdesk/opsdesk/internal/extract"
	"github.com/opsdesk/opsdesk/internal/llm"
	"github.com/opsdesk/opsdesk/internal/tracker"
	"github.com/opsdesk/opsdesk/internal/wiki"
)

func (s *Service) handleCreateWikiPage(ctx context.Context, turn turnContext) string {
	if !turn.caps.WikiAvailable {
		return wikiUnavailableReply
	}

	request, err := extract.Page(ctx, s.generator, turn.utterance)
	if err != nil {
		s.logger.Warn("page extraction failed", "error", err)
		return "I couldn't work out the page content from that. Please describe what the guide should cover."
	}
	spaceKey := request.SpaceKey
	if spaceKey == "" {
		spaceKey = s.opts.SpaceKey
	}
	if known, reply := s.checkSpace(ctx, spaceKey); !known {
		return reply
	}

	page, err := s.wiki.CreatePage(ctx, spaceKey, request.Title, request.Content)
	if err != nil {
		s.logger.Warn("create page failed", "title", request.Title, "error", err)
		return "I couldn't create the page in the knowledge base. Please try again later."
	}

	reply := fmt.Sprintf("Created page %q in space %s.", page.Title, spaceKey)
	if page.URL != "" {
		reply += " " + page.URL
	}
	return reply
}

// checkSpace verifies the space key exists before a create call. Lookup
// failures pass the key through; the create call reports its own error.
func (s *Service) checkSpace(ctx context.Context, spaceKey string) (bool, string) {
	spaces, err := s.wiki.ListSpaces(ctx)
	if err != nil {
		s.logger.Warn("list spaces failed", "error", err)
		return true, ""
	}
	if len(spaces) == 0 {
		return true, ""
	}
	keys := make([]string, 0, len(spaces))
	for _, space := range spaces {
		if strings.EqualFold(space.Key, spaceKey) {
			return true, ""
		}
		keys = append(keys, space.Key)
	}
	return false, fmt.Sprintf("I don't know a space called %s. Available spaces: %s.", spaceKey, strings.Join(keys, ", "))
}

func (s *Service) handleListWikiPages(ctx context.Context, turn turnContext) string {
	if !turn.caps.WikiAvailable {
		return wikiUnavailableReply
	}

	pages, err := s.wiki.SearchPages(ctx, "*")
	if err != nil {
		s.logger.Warn("list pages failed", "error", err)
		return "The knowledge base lookup failed. Please try again later."
	}
	if len(pages) == 0 {
		return "There are no pages in the knowledge base yet."
	}

	reply := formatPageList("Recent pages", pages)
	if spaces, err := s.wiki.ListSpaces(ctx); err == nil && len(spaces) > 0 {
		keys := make([]string, 0, len(spaces))
		for _, space := range spaces {
			keys = append(keys, space.Key)
		}
		reply += "\nSpaces: " + strings.Join(keys, ", ")
	}
	return reply
}

func (s *Service) handleSearchWiki(ctx context.Context, turn turnContext) string {
	if !turn.caps.WikiAvailable {
		return wikiUnavailableReply
	}

	query := turn.patterns.CleanSearchTerms(turn.utterance)
	if len(query) < 2 {
		query = "*"
	}
	pages, err := s.wiki.SearchPages(ctx, query)
	if err != nil {
		s.logger.Warn("search pages failed", "query", query, "error", err)
		return "The knowledge base search failed. Please try again later."
	}
	if len(pages) == 0 {
		return "No pages found matching your search."
	}
	return formatPageList(fmt.Sprintf("Found %d page(s)", len(pages)), pages)
}

// handleSearchKnowledge queries both backends, then asks the model for advice
// grounded in whatever was found. With no hits the turn degrades to plain
// chat, which also covers the both-backends-down notice.
func (s *Service) handleSearchKnowledge(ctx context.Context, turn turnContext) string {
	query := turn.patterns.CleanSearchTerms(turn.utterance)

	var pages []wiki.Page
	var issues []tracker.Issue
	if turn.caps.WikiAvailable && len(query) >= 2 {
		found, err := s.wiki.SearchPages(ctx, query)
		if err != nil {
			s.logger.Warn("knowledge wiki search failed", "query", query, "error", err)
		} else {
			pages = found
		}
	}
	if turn.caps.TrackerAvailable && len(query) >= 2 {
		found, err := s.tracker.SearchIssues(ctx, query, s.opts.SearchMaxResults)
		if err != nil {
			s.logger.Warn("knowledge ticket search failed", "query", query, "error", err)
		} else {
			issues = found
		}
	}

	if len(pages) == 0 && len(issues) == 0 {
		reply := s.handleGeneralChat(ctx, turn)
		if notice := availabilityNotice(turn.caps); notice != "" {
			return notice + "\n\n" + reply
		}
		return reply
	}

	var parts []string
	if len(pages) > 0 {
		parts = append(parts, formatPageList("Here is what I found in the knowledge base", pages))
	}
	if len(issues) > 0 {
		parts = append(parts, "Related tickets:\n"+formatIssueList(issues))
	}
	found := strings.Join(parts, "\n\n")

	advice, err := llm.GenerateText(ctx, s.generator, knowledgePrompt(turn.utterance, pages, issues))
	if err != nil || strings.TrimSpace(advice) == "" {
		if err != nil {
			s.logger.Warn("knowledge advice generation failed", "error", err)
		}
		return found
	}
	return strings.TrimSpace(advice) + "\n\n" + found
}

// availabilityNotice explains which backend could not be consulted. Empty
// when both are up.
func availabilityNotice(caps Capabilities) string {
	switch {
	case !caps.TrackerAvailable && !caps.WikiAvailable:
		return "Both the ticket system and the knowledge base are currently unavailable, so here is some general advice."
	case !caps.TrackerAvailable:
		return "The ticket system is currently unavailable, so I couldn't check existing tickets."
	case !caps.WikiAvailable:
		return "The knowledge base is currently unavailable, so I couldn't check existing guides."
	}
	return ""
}

func knowledgePrompt(utterance string, pages []wiki.Page, issues []tracker.Issue) string {
	var builder strings.Builder
	builder.WriteString("You are an IT support assistant. The user asked: ")
	builder.WriteString(utterance)
	builder.WriteString("\nThese existing resources were found:\n")
	for _, page := range pages {
		builder.WriteString("- Page: " + page.Title + "\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&builder, "- Ticket %s: %s [%s]\n", issue.Key, issue.Summary, issue.Status)
	}
	builder.WriteString("In two or three sentences, advise the user and point them at the most relevant resource.")
	return builder.String()
}

func formatPageList(heading string, pages []wiki.Page) string {
	var builder strings.Builder
	builder.WriteString(heading + ":\n")
	for _, page := range pages {
		builder.WriteString("- " + page.Title)
		if page.Excerpt != "" {
			builder.WriteString(": " + page.Excerpt)
		}
		if page.URL != "" {
			builder.WriteString(" (" + page.URL + ")")
		}
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}
