package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/gateway"
	"github.com/opsdesk/opsdesk/internal/store"
)

// ChatGateway is the slice of the gateway the API needs.
type ChatGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
}

// CapabilitySource yields the current backend availability snapshot.
type CapabilitySource interface {
	Snapshot() gateway.Capabilities
}

type Dependencies struct {
	Config       config.Config
	Store        *store.Store
	Gateway      ChatGateway
	Capabilities CapabilitySource
	Logger       *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/sessions/turns", rt.handleSessionTurns)
	mux.HandleFunc("/ws/chat", rt.handleChatSocket)
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store != nil {
		if err := r.deps.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	caps := r.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              "opsdesk",
		"environment":       r.deps.Config.Environment,
		"tracker_available": caps.TrackerAvailable,
		"wiki_available":    caps.WikiAvailable,
	})
}

func (r *router) handleSessionTurns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store is unavailable"})
		return
	}

	sessionID := strings.TrimSpace(req.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id query parameter is required"})
		return
	}
	limit := 20
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	turns, err := r.deps.Store.RecentTurns(req.Context(), sessionID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	payload := make([]map[string]any, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, map[string]any{
			"id":              turn.ID,
			"utterance":       turn.Utterance,
			"reply":           turn.Reply,
			"intent":          turn.Intent,
			"created_at_unix": turn.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"items":      payload,
		"count":      len(payload),
	})
}

func (r *router) snapshot() gateway.Capabilities {
	if r.deps.Capabilities == nil {
		return gateway.Capabilities{}
	}
	return r.deps.Capabilities.Snapshot()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
