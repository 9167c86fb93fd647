package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/internal/gateway"
)

type fakeGateway struct {
	inputs []gateway.MessageInput
	reply  string
}

func (f *fakeGateway) HandleMessage(_ context.Context, input gateway.MessageInput) (gateway.MessageOutput, error) {
	f.inputs = append(f.inputs, input)
	return gateway.MessageOutput{
		SessionID: input.SessionID,
		Intent:    gateway.IntentGeneralChat,
		Reply:     f.reply,
	}, nil
}

type fixedCaps struct {
	caps gateway.Capabilities
}

func (f fixedCaps) Snapshot() gateway.Capabilities { return f.caps }

func newTestRouter(gw ChatGateway) http.Handler {
	return NewRouter(Dependencies{
		Gateway:      gw,
		Capabilities: fixedCaps{caps: gateway.Capabilities{TrackerAvailable: true}},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestChatRejectsWrongMethod(t *testing.T) {
	handler := newTestRouter(&fakeGateway{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestChatRequiresText(t *testing.T) {
	handler := newTestRouter(&fakeGateway{})

	body := bytes.NewBufferString(`{"session_id": "s1", "text": "   "}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatMintsSessionID(t *testing.T) {
	gw := &fakeGateway{reply: "hello"}
	handler := newTestRouter(gw)

	body := bytes.NewBufferString(`{"text": "hi"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		SessionID string `json:"session_id"`
		Reply     string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.SessionID == "" {
		t.Fatalf("a session id must be minted when none is sent")
	}
	if payload.Reply != "hello" {
		t.Fatalf("unexpected reply: %q", payload.Reply)
	}
	if len(gw.inputs) != 1 || gw.inputs[0].SessionID != payload.SessionID {
		t.Fatalf("gateway must see the minted session id")
	}
}

func TestChatEchoesSessionAndCapabilities(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	handler := newTestRouter(gw)

	body := bytes.NewBufferString(`{"session_id": "sess-9", "user_id": "olivia", "text": "hi"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	input := gw.inputs[0]
	if input.SessionID != "sess-9" || input.UserID != "olivia" {
		t.Fatalf("unexpected gateway input: %+v", input)
	}
	if !input.Capabilities.TrackerAvailable || input.Capabilities.WikiAvailable {
		t.Fatalf("capability snapshot not forwarded: %+v", input.Capabilities)
	}
}

func TestSessionTurnsRequiresSessionID(t *testing.T) {
	handler := newTestRouter(&fakeGateway{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/turns", nil))
	if rec.Code != http.StatusServiceUnavailable && rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 or 503, got %d", rec.Code)
	}
}

func TestChatSocketRoundTrip(t *testing.T) {
	gw := &fakeGateway{reply: "pong"}
	server := httptest.NewServer(newTestRouter(gw))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?session_id=sock-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"text": "ping", "user_id": "olivia"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var outbound struct {
		SessionID string `json:"session_id"`
		Reply     string `json:"reply"`
		Error     string `json:"error"`
	}
	if err := conn.ReadJSON(&outbound); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if outbound.Error != "" {
		t.Fatalf("unexpected socket error: %s", outbound.Error)
	}
	if outbound.SessionID != "sock-1" || outbound.Reply != "pong" {
		t.Fatalf("unexpected frame: %+v", outbound)
	}
}

func TestChatSocketRejectsEmptyText(t *testing.T) {
	server := httptest.NewServer(newTestRouter(&fakeGateway{}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"text": "  "}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var outbound struct {
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&outbound); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if outbound.Error == "" {
		t.Fatalf("expected an error frame for empty text")
	}
}
