package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/internal/gateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API is same-origin in deployment; browser dev tooling connects
	// from localhost.
	CheckOrigin: func(*http.Request) bool { return true },
}

type socketInbound struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type socketOutbound struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
	Error     string `json:"error,omitempty"`
}

// handleChatSocket runs one chat session over a websocket. Every inbound
// frame is one utterance; the session id is pinned for the lifetime of the
// connection.
func (r *router) handleChatSocket(w http.ResponseWriter, req *http.Request) {
	if r.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat gateway is unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.deps.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := strings.TrimSpace(req.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for {
		var inbound socketInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.deps.Logger.Warn("websocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}

		text := strings.TrimSpace(inbound.Text)
		if text == "" {
			if err := conn.WriteJSON(socketOutbound{SessionID: sessionID, Error: "text is required"}); err != nil {
				return
			}
			continue
		}

		output, err := r.deps.Gateway.HandleMessage(req.Context(), gateway.MessageInput{
			SessionID:    sessionID,
			UserID:       strings.TrimSpace(inbound.UserID),
			Utterance:    text,
			Capabilities: r.snapshot(),
		})
		if err != nil {
			if err := conn.WriteJSON(socketOutbound{SessionID: sessionID, Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(socketOutbound{
			SessionID: output.SessionID,
			Intent:    string(output.Intent),
			Reply:     output.Reply,
		}); err != nil {
			return
		}
	}
}
