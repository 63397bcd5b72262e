package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	syncengine "stompingground/internal/sync"
	"stompingground/pkg/errors"
	"stompingground/pkg/logger"

	ws "stompingground/internal/infrastructure/websocket"
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	ChatID    string      `json:"chatId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type WebSocketHandler struct {
	wsManager *ws.Manager
	engine    *syncengine.Engine
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, engine *syncengine.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		engine:    engine,
	}
}

// HandleWebSocket upgrades the connection and attaches the live sync views:
// the chat-list watch opens immediately, per-chat message watches open and
// close as the client joins and leaves chat rooms. Everything the client
// holds is torn down on disconnect.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, ok := c.Get("uid").(string)
	if !ok || userID == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	ctx := context.Background()
	if err := h.openChatListWatch(ctx, client); err != nil {
		logger.Error("Failed to open chat list watch for %s: %v", userID, err)
	}

	go func() {
		client.ReadPump(h.wsManager, h.handleClientMessage)
		h.engine.StopAll(client.UserID)
	}()
	go client.WritePump()

	return nil
}

func (h *WebSocketHandler) handleClientMessage(client *ws.Client, raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn("Malformed WebSocket message from %s: %v", client.UserID, err)
		h.sendError(client, "Invalid message format")
		return
	}

	switch msg.Type {
	case "join_chat_room":
		h.handleJoinChatRoom(client, msg.ChatID)
	case "leave_chat_room":
		h.handleLeaveChatRoom(client, msg.ChatID)
	case "ping":
		h.send(client, WSMessage{Type: "pong", Timestamp: time.Now()})
	default:
		logger.Debug("Unknown WebSocket message type from %s: %s", client.UserID, msg.Type)
	}
}

func (h *WebSocketHandler) handleJoinChatRoom(client *ws.Client, chatID string) {
	if chatID == "" {
		h.sendError(client, "chatId is required")
		return
	}

	h.wsManager.JoinChatRoom(chatID, client.UserID)
	client.ActiveChatRoom = chatID

	watch, err := h.engine.WatchMessages(context.Background(), client.UserID, chatID)
	if err != nil {
		logger.Error("Failed to watch messages for %s in chat %s: %v", client.UserID, chatID, err)
		h.sendError(client, "Failed to subscribe to chat")
		return
	}

	go func() {
		for messages := range watch.Updates() {
			h.send(client, WSMessage{
				Type:      "message_sync",
				ChatID:    chatID,
				Data:      messages,
				Timestamp: time.Now(),
			})
		}
		if err := watch.Err(); err != nil {
			h.sendError(client, "Chat subscription lost")
		}
	}()

	h.send(client, WSMessage{Type: "chat_room_joined", ChatID: chatID, Timestamp: time.Now()})
}

func (h *WebSocketHandler) handleLeaveChatRoom(client *ws.Client, chatID string) {
	if chatID == "" {
		chatID = client.ActiveChatRoom
	}
	if chatID == "" {
		return
	}

	h.wsManager.LeaveChatRoom(chatID, client.UserID)
	if client.ActiveChatRoom == chatID {
		client.ActiveChatRoom = ""
	}
	h.engine.StopWatch(client.UserID, chatID)

	h.send(client, WSMessage{Type: "chat_room_left", ChatID: chatID, Timestamp: time.Now()})
}

func (h *WebSocketHandler) openChatListWatch(ctx context.Context, client *ws.Client) error {
	watch, err := h.engine.WatchChatList(ctx, client.UserID, client.UserID)
	if err != nil {
		return err
	}

	go func() {
		for chats := range watch.Updates() {
			h.send(client, WSMessage{
				Type:      "chat_list_update",
				Data:      chats,
				Timestamp: time.Now(),
			})
		}
	}()

	return nil
}

func (h *WebSocketHandler) send(client *ws.Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal WebSocket message: %v", err)
		return
	}
	if !client.TrySend(payload) {
		logger.Warn("Dropping frame for client %s", client.UserID)
	}
}

func (h *WebSocketHandler) sendError(client *ws.Client, message string) {
	h.send(client, WSMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now(),
	})
}
