package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsdesk/opsdesk/internal/extract"
	"github.com/opsdesk/opsdesk/internal/llm"
	"github.com/opsdesk/opsdesk/internal/tracker"
)

const resolutionComment = "Resolved via chatbot"

const missingKeyReply = "Please include a ticket key like SUP-123 so I know which ticket you mean."

// resolutionNames mark a transition as a terminal one. Checked in order
// against both the transition name and its target status.
var resolutionNames = []string{"done", "resolved", "closed", "complete", "finished", "klar"}

func (s *Service) handleGetTicketDetails(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}
	key := turn.patterns.TicketKey(turn.utterance)
	if key == "" {
		return missingKeyReply
	}

	issue, err := s.tracker.GetIssue(ctx, key)
	if err != nil {
		s.logger.Warn("get issue failed", "key", key, "error", err)
		return fmt.Sprintf("I couldn't find ticket %s. Please check the key and try again.", key)
	}
	return formatIssueDetails(issue)
}

func (s *Service) handleGetTicketSolution(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}
	key := turn.patterns.TicketKey(turn.utterance)
	if key == "" {
		return missingKeyReply
	}

	issue, err := s.tracker.GetIssue(ctx, key)
	if err != nil {
		s.logger.Warn("get issue failed", "key", key, "error", err)
		return fmt.Sprintf("I couldn't find ticket %s. Please check the key and try again.", key)
	}

	prompt := fmt.Sprintf(
		"You are an IT support assistant. Suggest a practical solution for this ticket.\n\nTicket %s: %s\nDescription: %s\n\nGive concrete troubleshooting steps in a short numbered list.",
		issue.Key, issue.Summary, issue.Description,
	)
	suggestion, err := llm.GenerateText(ctx, s.generator, prompt)
	if err != nil {
		s.logger.Warn("solution generation failed", "key", key, "error", err)
		return formatIssueDetails(issue) + "\n\nI couldn't generate a solution suggestion right now."
	}
	return fmt.Sprintf("Suggested solution for %s (%s):\n\n%s", issue.Key, issue.Summary, strings.TrimSpace(suggestion))
}

func (s *Service) handleResolveTicket(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}
	key := turn.patterns.TicketKey(turn.utterance)
	if key == "" {
		return missingKeyReply
	}

	comment := turn.patterns.ResolutionComment(turn.utterance)
	if comment == "" {
		comment = resolutionComment
	}
	transition, err := s.resolveIssue(ctx, key, comment)
	if err != nil {
		s.logger.Warn("resolve ticket failed", "key", key, "error", err)
		return fmt.Sprintf("I couldn't resolve %s: %v", key, err)
	}

	label := key
	if issue, err := s.tracker.GetIssue(ctx, key); err == nil && issue.Summary != "" {
		label = fmt.Sprintf("%s (%s)", key, issue.Summary)
	}
	return fmt.Sprintf("Ticket %s is now %s. Comment added: %s", label, transition.ToStatus, comment)
}

// resolveIssue applies the first terminal transition the tracker offers and
// records the resolution comment. The comment failure is non-fatal once the
// transition went through.
func (s *Service) resolveIssue(ctx context.Context, key, comment string) (tracker.Transition, error) {
	transitions, err := s.tracker.ListTransitions(ctx, key)
	if err != nil {
		return tracker.Transition{}, err
	}
	transition, ok := pickResolution(transitions)
	if !ok {
		return tracker.Transition{}, fmt.Errorf("no resolution transition available")
	}
	if err := s.tracker.ApplyTransition(ctx, key, transition.ID); err != nil {
		return tracker.Transition{}, err
	}
	if err := s.tracker.AddComment(ctx, key, comment); err != nil {
		s.logger.Warn("resolution comment failed", "key", key, "error", err)
	}
	return transition, nil
}

func pickResolution(transitions []tracker.Transition) (tracker.Transition, bool) {
	for _, name := range resolutionNames {
		for _, transition := range transitions {
			if strings.Contains(strings.ToLower(transition.Name), name) ||
				strings.Contains(strings.ToLower(transition.ToStatus), name) {
				return transition, true
			}
		}
	}
	return tracker.Transition{}, false
}

func (s *Service) handleUpdateTicketStatus(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}
	key := turn.patterns.TicketKey(turn.utterance)
	if key == "" {
		return missingKeyReply
	}

	transitions, err := s.tracker.ListTransitions(ctx, key)
	if err != nil {
		s.logger.Warn("list transitions failed", "key", key, "error", err)
		return fmt.Sprintf("I couldn't look up the available statuses for %s.", key)
	}

	target := turn.patterns.StatusTarget(turn.utterance)
	if target == "" {
		return transitionsHelp(key, transitions)
	}

	for _, transition := range transitions {
		if strings.EqualFold(transition.ToStatus, target) || strings.EqualFold(transition.Name, target) {
			if err := s.tracker.ApplyTransition(ctx, key, transition.ID); err != nil {
				s.logger.Warn("apply transition failed", "key", key, "transition", transition.ID, "error", err)
				return fmt.Sprintf("I couldn't move %s to %s: %v", key, target, err)
			}
			return fmt.Sprintf("Ticket %s has been moved to %s.", key, transition.ToStatus)
		}
	}
	return transitionsHelp(key, transitions)
}

func transitionsHelp(key string, transitions []tracker.Transition) string {
	if len(transitions) == 0 {
		return fmt.Sprintf("Ticket %s has no available status changes right now.", key)
	}
	names := make([]string, 0, len(transitions))
	for _, transition := range transitions {
		names = append(names, transition.ToStatus)
	}
	return fmt.Sprintf("I didn't recognize that status for %s. Available statuses: %s.", key, strings.Join(names, ", "))
}

func (s *Service) handleAddTicketComment(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}
	key := turn.patterns.TicketKey(turn.utterance)
	if key == "" {
		return missingKeyReply
	}

	text := turn.patterns.CommentText(turn.utterance)
	if text == "" {
		return fmt.Sprintf("What would you like the comment on %s to say? Try: comment on %s: your text", key, key)
	}
	if err := s.tracker.AddComment(ctx, key, text); err != nil {
		s.logger.Warn("add comment failed", "key", key, "error", err)
		return fmt.Sprintf("I couldn't add the comment to %s: %v", key, err)
	}
	return fmt.Sprintf("Comment added to %s.", key)
}

func (s *Service) handleCreateTicket(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}

	request, err := extract.Ticket(ctx, s.generator, turn.utterance)
	if err != nil {
		s.logger.Warn("ticket extraction failed", "error", err)
		return "I couldn't work out the ticket details from that. Please describe the problem in a bit more detail."
	}
	if request.ProjectKey == "" {
		request.ProjectKey = s.opts.ProjectKey
	}

	issue, err := s.tracker.CreateIssue(ctx, tracker.CreateIssueInput{
		ProjectKey:  request.ProjectKey,
		Summary:     request.Summary,
		Description: request.Description,
		IssueType:   request.IssueType,
		Priority:    request.Priority,
	})
	if err != nil {
		s.logger.Warn("create issue failed", "error", err)
		return "I couldn't create the ticket in the tracker. Please try again later."
	}

	assigned := s.maybeAssign(ctx, issue.Key, turn.input.UserID)

	reply := fmt.Sprintf("Created ticket %s: %s (priority %s).", issue.Key, issue.Summary, request.Priority)
	if assigned {
		reply += " It has been assigned to you."
	}
	return reply
}

func (s *Service) maybeAssign(ctx context.Context, key, userID string) bool {
	if !s.opts.AutoAssign || s.identity == nil || strings.TrimSpace(userID) == "" {
		return false
	}
	identity, err := s.identity.ResolveIdentity(ctx, userID)
	if err != nil {
		s.logger.Warn("identity resolution failed", "user_id", userID, "error", err)
		return false
	}
	if err := s.tracker.UpdateAssignee(ctx, key, identity); err != nil {
		s.logger.Warn("auto assignment failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) handleSearchTickets(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}

	query := turn.patterns.CleanSearchTerms(turn.utterance)
	if len(query) < 2 {
		query = "*"
	}
	issues, err := s.tracker.SearchIssues(ctx, query, s.opts.SearchMaxResults)
	if err != nil {
		s.logger.Warn("search issues failed", "query", query, "error", err)
		return "The ticket search failed. Please try again later."
	}
	if len(issues) == 0 {
		return "No tickets found matching your search."
	}
	return formatIssueList(issues)
}

func (s *Service) handleBulkCloseTickets(ctx context.Context, turn turnContext) string {
	if !turn.caps.TrackerAvailable {
		return trackerUnavailableReply
	}

	topic := turn.patterns.BulkTopic(turn.utterance)
	if topic == "" {
		return "Which tickets should I close? Try: close all tickets about printer"
	}

	issues, err := s.tracker.SearchIssues(ctx, topic, s.opts.SearchMaxResults)
	if err != nil {
		s.logger.Warn("bulk search failed", "topic", topic, "error", err)
		return "The ticket search failed. Please try again later."
	}

	open := make([]tracker.Issue, 0, len(issues))
	for _, issue := range issues {
		if !isTerminalStatus(issue.Status) {
			open = append(open, issue)
		}
	}
	if len(open) == 0 {
		return fmt.Sprintf("No open tickets found about %q.", topic)
	}

	var closed, failed []string
	for _, issue := range open {
		if _, err := s.resolveIssue(ctx, issue.Key, resolutionComment); err != nil {
			s.logger.Warn("bulk resolve failed", "key", issue.Key, "error", err)
			failed = append(failed, fmt.Sprintf("%s (%v)", issue.Key, err))
			continue
		}
		closed = append(closed, issue.Key)
	}

	switch {
	case len(failed) == 0:
		return fmt.Sprintf("Closed %d ticket(s) about %q: %s.", len(closed), topic, strings.Join(closed, ", "))
	case len(closed) == 0:
		return fmt.Sprintf("I couldn't close any of the %d matching ticket(s): %s.", len(failed), strings.Join(failed, ", "))
	default:
		return fmt.Sprintf("Closed %s. Failed to close %s.", strings.Join(closed, ", "), strings.Join(failed, ", "))
	}
}

func isTerminalStatus(status string) bool {
	lower := strings.ToLower(status)
	for _, name := range resolutionNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func formatIssueDetails(issue tracker.Issue) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s: %s\n", issue.Key, issue.Summary)
	fmt.Fprintf(&builder, "Status: %s\n", issue.Status)
	fmt.Fprintf(&builder, "Priority: %s\n", valueOr(issue.Priority, "Not set"))
	if issue.IssueType != "" {
		fmt.Fprintf(&builder, "Type: %s\n", issue.IssueType)
	}
	fmt.Fprintf(&builder, "Assignee: %s\n", valueOr(issue.Assignee, "Unassigned"))
	if issue.Created != "" {
		fmt.Fprintf(&builder, "Created: %s\n", issue.Created)
	}
	fmt.Fprintf(&builder, "\n%s", valueOr(issue.Description, "No description provided"))
	return strings.TrimRight(builder.String(), "\n")
}

func formatIssueList(issues []tracker.Issue) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Found %d ticket(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&builder, "- %s: %s [%s, %s]\n", issue.Key, issue.Summary, issue.Status, valueOr(issue.Priority, "Not set"))
		if issue.Description != "" {
			fmt.Fprintf(&builder, "  %s\n", snippet(issue.Description, 80))
		}
	}
	return strings.TrimRight(builder.String(), "\n")
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
