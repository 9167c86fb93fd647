package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opsdesk/opsdesk/internal/llm"
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama3:latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
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

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (llm.Stream, error) {
	payload := chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()
		c.logger.Error("ollama chat failed", "status", res.StatusCode, "body", strings.TrimSpace(string(detail)))
		return nil, fmt.Errorf("ollama chat failed with status %d", res.StatusCode)
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &stream{body: res.Body, scanner: scanner}, nil
}

// stream decodes the NDJSON chat reply, one fragment per line.
type stream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	finished bool
}

func (s *stream) Next() (string, bool, error) {
	if s.finished {
		return "", true, nil
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", false, fmt.Errorf("decode ollama chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", false, fmt.Errorf("ollama generation error: %s", chunk.Error)
		}
		if chunk.Done {
			s.finished = true
			return chunk.Message.Content, true, nil
		}
		return chunk.Message.Content, false, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", false, fmt.Errorf("read ollama stream: %w", err)
	}
	s.finished = true
	return "", true, nil
}

func (s *stream) Close() error {
	return s.body.Close()
}
