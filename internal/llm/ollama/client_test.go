package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opsdesk/opsdesk/internal/llm"
)

func TestGenerateCollectsStreamedFragments(t *testing.T) {
	var receivedModel string
	var receivedPrompt string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		receivedModel = body.Model
		if len(body.Messages) > 0 {
			receivedPrompt = body.Messages[0].Content
		}
		if !body.Stream {
			t.Fatalf("expected streaming request")
		}
		chunks := []string{
			`{"message":{"content":"Hello"},"done":false}`,
			`{"message":{"content":" there"},"done":false}`,
			`{"message":{"content":"."},"done":true}`,
		}
		for _, chunk := range chunks {
			_, _ = io.WriteString(w, chunk+"\n")
		}
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "llama3:latest"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	text, err := llm.GenerateText(context.Background(), client, "say hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Hello there." {
		t.Fatalf("unexpected collected text: %q", text)
	}
	if receivedModel != "llama3:latest" {
		t.Fatalf("unexpected model: %s", receivedModel)
	}
	if receivedPrompt != "say hello" {
		t.Fatalf("unexpected prompt: %s", receivedPrompt)
	}
}

func TestGenerateSurfacesStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"content":"partial"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"error":"model not loaded"}`+"\n")
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := llm.GenerateText(context.Background(), client, "anything")
	if err == nil {
		t.Fatalf("expected stream error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := client.Generate(context.Background(), "anything"); err == nil {
		t.Fatalf("expected status error")
	}
}
