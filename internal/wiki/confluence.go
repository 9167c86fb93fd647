package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Page struct {
	ID      string
	Title   string
	Excerpt string
	URL     string
}

type Space struct {
	Key  string
	Name string
}

type Config struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Client talks to a Confluence-compatible REST API.
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

func (c *Client) Probe(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return fmt.Errorf("confluence base url is not configured")
	}
	var payload struct {
		Results []json.RawMessage `json:"results"`
	}
	return c.doJSON(ctx, http.MethodGet, "/rest/api/space?limit=1", nil, &payload)
}

// SearchPages runs a CQL text search. The wildcard query "*" lists recent
// pages instead of matching text.
func (c *Client) SearchPages(ctx context.Context, query string) ([]Page, error) {
	cql := buildSearchCQL(query)
	path := "/rest/api/content/search?cql=" + url.QueryEscape(cql) + "&expand=body.view&limit=10"

	var payload struct {
		Results []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Body  struct {
				View struct {
					Value string `json:"value"`
				} `json:"view"`
			} `json:"body"`
			Links struct {
				WebUI string `json:"webui"`
			} `json:"_links"`
		} `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}

	pages := make([]Page, 0, len(payload.Results))
	for _, item := range payload.Results {
		pages = append(pages, Page{
			ID:      item.ID,
			Title:   item.Title,
			Excerpt: excerpt(item.Body.View.Value),
			URL:     strings.TrimRight(c.cfg.BaseURL, "/") + item.Links.WebUI,
		})
	}
	return pages, nil
}

func (c *Client) CreatePage(ctx context.Context, spaceKey, title, htmlContent string) (Page, error) {
	body := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          htmlContent,
				"representation": "storage",
			},
		},
	}

	var payload struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/content", body, &payload); err != nil {
		return Page{}, fmt.Errorf("create page: %w", err)
	}
	return Page{ID: payload.ID, Title: payload.Title}, nil
}

func (c *Client) ListSpaces(ctx context.Context) ([]Space, error) {
	var payload struct {
		Results []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/space?limit=50", nil, &payload); err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}

	spaces := make([]Space, 0, len(payload.Results))
	for _, item := range payload.Results {
		spaces = append(spaces, Space{Key: item.Key, Name: item.Name})
	}
	return spaces, nil
}

func buildSearchCQL(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || trimmed == "*" {
		return `type = "page" order by lastmodified desc`
	}
	escaped := strings.ReplaceAll(trimmed, `"`, `\"`)
	return fmt.Sprintf(`type = "page" AND text ~ "%s"`, escaped)
}

var htmlTagStripper = strings.NewReplacer("<p>", " ", "</p>", " ", "<br>", " ", "<br/>", " ")

func excerpt(html string) string {
	text := htmlTagStripper.Replace(html)
	inTag := false
	var builder strings.Builder
	for _, char := range text {
		switch {
		case char == '<':
			inTag = true
		case char == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(char)
		}
	}
	clean := strings.Join(strings.Fields(builder.String()), " ")
	if len(clean) > 200 {
		return clean[:200] + "..."
	}
	return clean
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
		c.logger.Warn("confluence request failed", "method", method, "path", path, "status", res.StatusCode)
		text := strings.Join(strings.Fields(string(respBody)), " ")
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		return fmt.Errorf("confluence returned status %d: %s", res.StatusCode, text)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode confluence response: %w", err)
	}
	return nil
}
