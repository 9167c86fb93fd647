package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Client talks to a Jira-compatible REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Probe checks reachability; the runtime turns the result into the
// tracker-available capability flag.
func (c *Client) Probe(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return fmt.Errorf("jira base url is not configured")
	}
	var payload struct {
		AccountID string `json:"accountId"`
	}
	return c.doJSON(ctx, http.MethodGet, "/rest/api/2/myself", nil, &payload)
}

func (c *Client) SearchIssues(ctx context.Context, query string, maxResults int) ([]Issue, error) {
	if maxResults < 1 {
		maxResults = 5
	}
	jql := buildSearchJQL(query)
	path := "/rest/api/2/search?jql=" + url.QueryEscape(jql) + "&maxResults=" + strconv.Itoa(maxResults)

	var payload struct {
		Issues []issuePayload `json:"issues"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}

	issues := make([]Issue, 0, len(payload.Issues))
	for _, item := range payload.Issues {
		issues = append(issues, item.toIssue())
	}
	return issues, nil
}

func (c *Client) GetIssue(ctx context.Context, key string) (Issue, error) {
	var payload issuePayload
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), nil, &payload); err != nil {
		return Issue{}, fmt.Errorf("get issue %s: %w", key, err)
	}
	return payload.toIssue(), nil
}

func (c *Client) CreateIssue(ctx context.Context, input CreateIssueInput) (Issue, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": input.ProjectKey},
		"summary":     input.Summary,
		"description": input.Description,
		"issuetype":   map[string]string{"name": input.IssueType},
		"priority":    map[string]string{"name": input.Priority},
	}
	if strings.TrimSpace(input.Assignee) != "" {
		fields["assignee"] = map[string]string{"name": input.Assignee}
	}

	var payload struct {
		Key string `json:"key"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue", map[string]any{"fields": fields}, &payload); err != nil {
		return Issue{}, fmt.Errorf("create issue: %w", err)
	}
	return Issue{Key: payload.Key, Summary: input.Summary, Priority: input.Priority, IssueType: input.IssueType}, nil
}

func (c *Client) ListTransitions(ctx context.Context, key string) ([]Transition, error) {
	var payload struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key)+"/transitions", nil, &payload); err != nil {
		return nil, fmt.Errorf("list transitions for %s: %w", key, err)
	}

	transitions := make([]Transition, 0, len(payload.Transitions))
	for _, item := range payload.Transitions {
		transitions = append(transitions, Transition{ID: item.ID, Name: item.Name, ToStatus: item.To.Name})
	}
	return transitions, nil
}

func (c *Client) ApplyTransition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/transitions", body, nil); err != nil {
		return fmt.Errorf("apply transition on %s: %w", key, err)
	}
	return nil
}

func (c *Client) AddComment(ctx context.Context, key, text string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/comment", map[string]string{"body": text}, nil); err != nil {
		return fmt.Errorf("add comment to %s: %w", key, err)
	}
	return nil
}

func (c *Client) UpdateAssignee(ctx context.Context, key string, identity Identity) error {
	var body map[string]string
	switch {
	case strings.TrimSpace(identity.AccountID) != "":
		body = map[string]string{"accountId": identity.AccountID}
	case strings.TrimSpace(identity.Username) != "":
		body = map[string]string{"name": identity.Username}
	case strings.TrimSpace(identity.Email) != "":
		body = map[string]string{"name": identity.Email}
	default:
		return fmt.Errorf("no usable assignee identity for %s", key)
	}
	if err := c.doJSON(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key)+"/assignee", body, nil); err != nil {
		return fmt.Errorf("update assignee on %s: %w", key, err)
	}
	return nil
}

// ResolveIdentity looks up a tracker account for a chat user id. The first
// match from the user search endpoint wins.
func (c *Client) ResolveIdentity(ctx context.Context, userID string) (Identity, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return Identity{}, fmt.Errorf("empty user id")
	}

	var payload []struct {
		AccountID    string `json:"accountId"`
		Name         string `json:"name"`
		EmailAddress string `json:"emailAddress"`
	}
	path := "/rest/api/2/user/search?username=" + url.QueryEscape(trimmed)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return Identity{}, fmt.Errorf("search users: %w", err)
	}
	if len(payload) == 0 {
		return Identity{}, fmt.Errorf("no tracker account matches %q", trimmed)
	}
	return Identity{
		AccountID: payload[0].AccountID,
		Username:  payload[0].Name,
		Email:     payload[0].EmailAddress,
	}, nil
}

func buildSearchJQL(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || trimmed == "*" {
		return "order by created DESC"
	}
	escaped := strings.ReplaceAll(trimmed, `"`, `\"`)
	return fmt.Sprintf(`summary ~ "%s" OR description ~ "%s" order by created DESC`, escaped, escaped)
}

type issuePayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Created     string `json:"created"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
	} `json:"fields"`
}

func (p issuePayload) toIssue() Issue {
	issue := Issue{
		Key:         p.Key,
		Summary:     p.Fields.Summary,
		Description: p.Fields.Description,
		Status:      p.Fields.Status.Name,
		IssueType:   p.Fields.IssueType.Name,
		Created:     p.Fields.Created,
	}
	if p.Fields.Priority != nil {
		issue.Priority = p.Fields.Priority.Name
	}
	if p.Fields.Assignee != nil {
		issue.Assignee = p.Fields.Assignee.DisplayName
	}
	return issue
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.cfg.Username) != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Warn("jira request failed", "method", method, "path", path, "status", res.StatusCode)
		return fmt.Errorf("jira returned status %d: %s", res.StatusCode, compactBody(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}

func compactBody(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}
