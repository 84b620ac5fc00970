package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// PresenceWriter is the realtime slice of the endpoint store.
type PresenceWriter interface {
	SetOnline(ctx context.Context, userID string) error
	SetActiveConversation(ctx context.Context, userID, conversationID string) error
	ClearPresence(ctx context.Context, userID string) error
}

var presenceUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// PresenceClientMessage represents presence updates from the frontend.
type PresenceClientMessage struct {
	Type           string `json:"type"` // "active_conversation", "inactive", "ping"
	ConversationID string `json:"conversation_id,omitempty"`
}

// PresenceGateway lets clients report online state and which conversation
// they currently have open. The fan-out engine reads this state to suppress
// pushes nobody needs. Presence expires by TTL, so an unclean disconnect
// simply ages out.
type PresenceGateway struct {
	presence PresenceWriter
}

func NewPresenceGateway(presence PresenceWriter) *PresenceGateway {
	return &PresenceGateway{presence: presence}
}

// PresenceWebSocket handles a client's realtime presence connection.
// The uid comes from the query string; authentication is handled by the
// chat application in front of this service.
func (h *PresenceGateway) PresenceWebSocket(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		http.Error(w, "uid is required", http.StatusBadRequest)
		return
	}

	conn, err := presenceUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mark user as online
	_ = h.presence.SetOnline(ctx, uid)

	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// On disconnect, clear eagerly; TTL expiry is the backstop.
			_ = h.presence.ClearPresence(context.WithoutCancel(ctx), uid)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var msg PresenceClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "active_conversation":
			_ = h.presence.SetOnline(ctx, uid)
			_ = h.presence.SetActiveConversation(ctx, uid, strings.TrimSpace(msg.ConversationID))
		case "inactive":
			_ = h.presence.SetActiveConversation(ctx, uid, "")
		case "ping":
			// Refresh presence TTL
			_ = h.presence.SetOnline(ctx, uid)
		}
	}
}
