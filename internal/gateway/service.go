package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/llm"
	"github.com/opsdesk/opsdesk/internal/store"
	"github.com/opsdesk/opsdesk/internal/tracker"
	"github.com/opsdesk/opsdesk/internal/wiki"
)

// Capabilities is the per-turn snapshot of which backends are reachable.
// Handlers read it instead of probing, so a turn sees one consistent view.
type Capabilities struct {
	TrackerAvailable bool
	WikiAvailable    bool
}

// Tracker is the slice of the issue tracker the gateway needs.
type Tracker interface {
	SearchIssues(ctx context.Context, query string, maxResults int) ([]tracker.Issue, error)
	GetIssue(ctx context.Context, key string) (tracker.Issue, error)
	CreateIssue(ctx context.Context, input tracker.CreateIssueInput) (tracker.Issue, error)
	ListTransitions(ctx context.Context, key string) ([]tracker.Transition, error)
	ApplyTransition(ctx context.Context, key, transitionID string) error
	AddComment(ctx context.Context, key, text string) error
	UpdateAssignee(ctx context.Context, key string, identity tracker.Identity) error
}

// Wiki is the slice of the knowledge base the gateway needs.
type Wiki interface {
	SearchPages(ctx context.Context, query string) ([]wiki.Page, error)
	CreatePage(ctx context.Context, spaceKey, title, htmlContent string) (wiki.Page, error)
	ListSpaces(ctx context.Context) ([]wiki.Space, error)
}

// TurnStore persists the conversation history.
type TurnStore interface {
	AppendTurn(ctx context.Context, input store.AppendTurnInput) (store.Turn, error)
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]store.Turn, error)
}

// IdentityResolver maps a chat user id onto a tracker identity for
// auto-assignment. Optional; nil disables assignment.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (tracker.Identity, error)
}

type Options struct {
	ProjectKey       string
	SpaceKey         string
	ContextTurns     int
	SearchMaxResults int
	AutoAssign       bool
}

func (o Options) withDefaults() Options {
	if o.ProjectKey == "" {
		o.ProjectKey = "SUP"
	}
	if o.SpaceKey == "" {
		o.SpaceKey = "ITSUPPORT"
	}
	if o.ContextTurns < 1 {
		o.ContextTurns = 5
	}
	if o.SearchMaxResults < 1 {
		o.SearchMaxResults = 5
	}
	return o
}

// Service routes utterances to the tracker, the wiki, or the language model,
// and records every exchange as a turn.
type Service struct {
	logger    *slog.Logger
	generator llm.Generator
	tracker   Tracker
	wiki      Wiki
	turns     TurnStore
	identity  IdentityResolver
	opts      Options

	patterns atomic.Pointer[Patterns]
}

func NewService(logger *slog.Logger, generator llm.Generator, trk Tracker, wk Wiki, turns TurnStore, identity IdentityResolver, patterns *Patterns, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if patterns == nil {
		patterns = NewPatterns(config.DefaultRoutingTables())
	}
	s := &Service{
		logger:    logger,
		generator: generator,
		tracker:   trk,
		wiki:      wk,
		turns:     turns,
		identity:  identity,
		opts:      opts.withDefaults(),
	}
	s.patterns.Store(patterns)
	return s
}

// SetPatterns swaps the keyword tables. In-flight turns keep the snapshot
// they started with.
func (s *Service) SetPatterns(p *Patterns) {
	if p != nil {
		s.patterns.Store(p)
	}
}

type MessageInput struct {
	SessionID    string
	UserID       string
	Utterance    string
	Capabilities Capabilities
}

type MessageOutput struct {
	SessionID string
	Intent    Intent
	Reply     string
}

// HandleMessage classifies the utterance, runs the matching handler, and
// appends the exchange to the session history. Handler failures degrade to
// user-facing error replies; only storage of the turn can fail the call
// silently, which is logged instead.
func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (MessageOutput, error) {
	utterance := strings.TrimSpace(input.Utterance)
	if utterance == "" {
		return MessageOutput{}, fmt.Errorf("empty utterance")
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return MessageOutput{}, fmt.Errorf("missing session id")
	}

	intent := Classify(utterance)
	patterns := s.patterns.Load()

	turn := turnContext{
		input:     input,
		utterance: utterance,
		patterns:  patterns,
		caps:      input.Capabilities,
	}

	reply := s.dispatch(ctx, intent, turn)

	if _, err := s.turns.AppendTurn(ctx, store.AppendTurnInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Utterance: utterance,
		Reply:     reply,
		Intent:    string(intent),
	}); err != nil {
		s.logger.Error("append turn failed", "session_id", input.SessionID, "error", err)
	}

	return MessageOutput{SessionID: input.SessionID, Intent: intent, Reply: reply}, nil
}

// turnContext carries the per-turn inputs every handler needs.
type turnContext struct {
	input     MessageInput
	utterance string
	patterns  *Patterns
	caps      Capabilities
}

func (s *Service) dispatch(ctx context.Context, intent Intent, turn turnContext) string {
	switch intent {
	case IntentResolveTicket:
		return s.handleResolveTicket(ctx, turn)
	case IntentUpdateTicketStatus:
		return s.handleUpdateTicketStatus(ctx, turn)
	case IntentAddTicketComment:
		return s.handleAddTicketComment(ctx, turn)
	case IntentGetTicketSolution:
		return s.handleGetTicketSolution(ctx, turn)
	case IntentGetTicketDetails:
		return s.handleGetTicketDetails(ctx, turn)
	case IntentCreateWikiPage:
		return s.handleCreateWikiPage(ctx, turn)
	case IntentListWikiPages:
		return s.handleListWikiPages(ctx, turn)
	case IntentSearchWiki:
		return s.handleSearchWiki(ctx, turn)
	case IntentCreateTicket:
		return s.handleCreateTicket(ctx, turn)
	case IntentSearchTickets:
		return s.handleSearchTickets(ctx, turn)
	case IntentBulkCloseTickets:
		return s.handleBulkCloseTickets(ctx, turn)
	case IntentSearchKnowledge:
		return s.handleSearchKnowledge(ctx, turn)
	default:
		return s.handleGeneralChat(ctx, turn)
	}
}

const (
	trackerUnavailableReply = "The ticket system is currently unavailable. Please try again later."
	wikiUnavailableReply    = "The knowledge base is currently unavailable. Please try again later."
)
