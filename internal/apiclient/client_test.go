package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opsdesk/opsdesk/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(config.Config{APIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func TestChatSendsSessionAndText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/v1/chat" || req.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		var payload ChatRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.SessionID != "sess-1" || payload.Text != "hi" {
			t.Errorf("unexpected payload: %+v", payload)
		}
		json.NewEncoder(w).Encode(ChatResponse{SessionID: "sess-1", Intent: "general_chat", Reply: "hello"})
	})

	response, err := client.Chat(context.Background(), ChatRequest{SessionID: "sess-1", Text: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if response.Reply != "hello" || response.SessionID != "sess-1" {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestChatSurfacesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "text is required"})
	})

	_, err := client.Chat(context.Background(), ChatRequest{Text: ""})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "server returned status 400: text is required" {
		t.Fatalf("unexpected error: %s", got)
	}
}

func TestTurnsBuildsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("session_id") != "sess-2" || req.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected query: %s", req.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(TurnsResponse{SessionID: "sess-2", Count: 0})
	})

	if _, err := client.Turns(context.Background(), "sess-2", 10); err != nil {
		t.Fatalf("turns: %v", err)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New(config.Config{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
