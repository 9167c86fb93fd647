package gateway

import (
	"context"
	"strings"

	"github.com/opsdesk/opsdesk/internal/llm"
)

const chatFallbackReply = "I'm having trouble thinking right now. Please try again in a moment."

// replyContextLimit bounds how much of each past assistant reply is carried
// into the prompt. Long ticket listings would otherwise crowd out the
// conversation itself.
const replyContextLimit = 100

// capabilityQuestions short-circuit to a fixed summary instead of a model
// call; the answer must stay accurate about what the bot can actually do.
var capabilityQuestions = []string{
	"what can you do",
	"what do you do",
	"how can you help",
	"your capabilities",
}

func (s *Service) handleGeneralChat(ctx context.Context, turn turnContext) string {
	if containsAny(strings.ToLower(turn.utterance), capabilityQuestions) {
		return capabilitiesReply(turn.caps)
	}

	prompt := s.buildChatPrompt(ctx, turn)

	reply, err := llm.GenerateText(ctx, s.generator, prompt)
	if err != nil {
		s.logger.Warn("chat generation failed", "session_id", turn.input.SessionID, "error", err)
		return chatFallbackReply
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return chatFallbackReply
	}
	return reply
}

func (s *Service) buildChatPrompt(ctx context.Context, turn turnContext) string {
	var builder strings.Builder
	builder.WriteString("You are an IT support assistant.\n")
	builder.WriteString(capabilitySummary(turn.caps))
	builder.WriteString("\n")

	history, err := s.turns.RecentTurns(ctx, turn.input.SessionID, s.opts.ContextTurns)
	if err != nil {
		s.logger.Warn("load recent turns failed", "session_id", turn.input.SessionID, "error", err)
	}
	if len(history) > 0 {
		builder.WriteString("\nRecent conversation:\n")
		// RecentTurns returns newest first; prompts read oldest first.
		for i := len(history) - 1; i >= 0; i-- {
			builder.WriteString("User: " + history[i].Utterance + "\n")
			builder.WriteString("Assistant: " + truncateReply(history[i].Reply) + "\n")
		}
	}

	builder.WriteString("\nUser: " + turn.utterance + "\nAssistant:")
	return builder.String()
}

func capabilitySummary(caps Capabilities) string {
	switch {
	case caps.TrackerAvailable && caps.WikiAvailable:
		return "You can create, search, comment on and resolve support tickets, and create and search knowledge base pages."
	case caps.TrackerAvailable:
		return "You can create, search, comment on and resolve support tickets. The knowledge base is currently unavailable."
	case caps.WikiAvailable:
		return "You can create and search knowledge base pages. The ticket system is currently unavailable."
	default:
		return "Both the ticket system and the knowledge base are currently unavailable; you can only answer from general knowledge."
	}
}

func capabilitiesReply(caps Capabilities) string {
	var builder strings.Builder
	builder.WriteString("I can help you with support tickets and the knowledge base:\n")
	builder.WriteString("- Create, search, comment on, resolve and bulk-close tickets\n")
	builder.WriteString("- Look up ticket details and suggest solutions\n")
	builder.WriteString("- Create, list and search knowledge base pages\n")
	builder.WriteString(statusLine("Ticket system", caps.TrackerAvailable))
	builder.WriteString("\n")
	builder.WriteString(statusLine("Knowledge base", caps.WikiAvailable))
	return builder.String()
}

func statusLine(name string, available bool) string {
	if available {
		return name + ": available"
	}
	return name + ": currently unavailable"
}

func truncateReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) <= replyContextLimit {
		return reply
	}
	return reply[:replyContextLimit] + "..."
}
