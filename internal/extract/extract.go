package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opsdesk/opsdesk/internal/llm"
)

// The generator is not contractually bound to emit clean JSON, so recovery
// here tolerates markdown fences, trailing prose, inline comments and
// control characters before giving up.

var (
	ErrEmptyGeneration = errors.New("empty generation")
	ErrNoJSONFound     = errors.New("no json object in generation")
)

// MalformedJSONError carries the parser diagnostic plus a truncated preview
// of the raw reply, to aid debugging without dumping unbounded text.
type MalformedJSONError struct {
	Preview string
	Err     error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed json in generation: %v (raw: %q)", e.Err, e.Preview)
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("generation json is missing required field %q", e.Field)
}

const previewLimit = 200

// TicketRequest is the target shape for ticket creation.
type TicketRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	ProjectKey  string `json:"project_key"`
	Priority    string `json:"priority"`
	IssueType   string `json:"issue_type"`
}

// PageRequest is the target shape for wiki page creation.
type PageRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	SpaceKey string `json:"space_key"`
}

const ticketPromptTemplate = `Extract ticket information from this message: %q

Return ONLY valid JSON without any extra text, comments, or markdown formatting:
{
    "summary": "brief title",
    "description": "detailed description",
    "project_key": "SUP",
    "priority": "Medium",
    "issue_type": "Task"
}

Do not include any text before or after the JSON. Do not use comments in the JSON.
Do not use placeholder text such as "brief title" in the values.`

const pagePromptTemplate = `Create a troubleshooting guide based on: %q

Return ONLY valid JSON:
{
    "title": "Brief title for the guide",
    "content": "Simple HTML content with basic troubleshooting steps",
    "space_key": "ITSUPPORT"
}

Keep the content simple with basic HTML tags only. Use h2 for headings, p for paragraphs, ul and li for lists.
Avoid special characters, quotes, and newlines in the content.`

func Ticket(ctx context.Context, generator llm.Generator, utterance string) (TicketRequest, error) {
	raw, err := generate(ctx, generator, fmt.Sprintf(ticketPromptTemplate, utterance))
	if err != nil {
		return TicketRequest{}, err
	}
	object, err := RecoverObject(raw)
	if err != nil {
		return TicketRequest{}, err
	}
	if err := requireFields(object, "summary", "description"); err != nil {
		return TicketRequest{}, err
	}

	request := TicketRequest{
		Summary:     stringField(object, "summary"),
		Description: stringField(object, "description"),
		ProjectKey:  stringField(object, "project_key"),
		Priority:    stringField(object, "priority"),
		IssueType:   stringField(object, "issue_type"),
	}
	if request.ProjectKey == "" {
		request.ProjectKey = "SUP"
	}
	if request.Priority == "" {
		request.Priority = "Medium"
	}
	if request.IssueType == "" {
		request.IssueType = "Task"
	}
	return request, nil
}

func Page(ctx context.Context, generator llm.Generator, utterance string) (PageRequest, error) {
	raw, err := generate(ctx, generator, fmt.Sprintf(pagePromptTemplate, utterance))
	if err != nil {
		return PageRequest{}, err
	}
	object, err := RecoverObject(raw)
	if err != nil {
		return PageRequest{}, err
	}
	if err := requireFields(object, "title", "content"); err != nil {
		return PageRequest{}, err
	}

	return PageRequest{
		Title:    stringField(object, "title"),
		Content:  stringField(object, "content"),
		SpaceKey: stringField(object, "space_key"),
	}, nil
}

func generate(ctx context.Context, generator llm.Generator, prompt string) (string, error) {
	raw, err := llm.GenerateText(ctx, generator, prompt)
	if err != nil {
		return "", err
	}
	return raw, nil
}

// RecoverObject locates and repairs a single JSON object inside free text.
func RecoverObject(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyGeneration
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSONFound
	}
	candidate := raw[start : end+1]

	for _, stage := range repairStages {
		candidate = stage.apply(candidate)
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(candidate), &object); err != nil {
		return nil, &MalformedJSONError{Preview: preview(raw), Err: err}
	}
	return object, nil
}

func requireFields(object map[string]any, fields ...string) error {
	for _, field := range fields {
		if stringField(object, field) == "" {
			return &MissingFieldError{Field: field}
		}
	}
	return nil
}

func stringField(object map[string]any, key string) string {
	value, ok := object[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func preview(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= previewLimit {
		return trimmed
	}
	return trimmed[:previewLimit] + "..."
}
