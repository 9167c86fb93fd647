package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/opsdesk/opsdesk/internal/config"
)

// Client is the HTTP client the CLI and the terminal UI use to talk to a
// running opsdesk server.
type Client struct {
	baseURL string
	http    *http.Client
}

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
}

type Turn struct {
	ID            string `json:"id"`
	Utterance     string `json:"utterance"`
	Reply         string `json:"reply"`
	Intent        string `json:"intent"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type TurnsResponse struct {
	SessionID string `json:"session_id"`
	Items     []Turn `json:"items"`
	Count     int    `json:"count"`
}

type InfoResponse struct {
	Name             string `json:"name"`
	Environment      string `json:"environment"`
	TrackerAvailable bool   `json:"tracker_available"`
	WikiAvailable    bool   `json:"wiki_available"`
}

func New(cfg config.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api base url is not configured")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}, nil
}

func (c *Client) Chat(ctx context.Context, request ChatRequest) (ChatResponse, error) {
	var response ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat", request, &response); err != nil {
		return ChatResponse{}, err
	}
	return response, nil
}

func (c *Client) Turns(ctx context.Context, sessionID string, limit int) (TurnsResponse, error) {
	path := "/api/v1/sessions/turns?session_id=" + url.QueryEscape(sessionID)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var response TurnsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &response); err != nil {
		return TurnsResponse{}, err
	}
	return response, nil
}

func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	var response InfoResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/info", nil, &response); err != nil {
		return InfoResponse{}, err
	}
	return response, nil
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("server returned status %d: %s", res.StatusCode, failure.Error)
		}
		return fmt.Errorf("server returned status %d", res.StatusCode)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
