package handler

import (
	"github.com/labstack/echo/v4"

	"stompingground/internal/usecase"
	"stompingground/pkg/response"
	"stompingground/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createChatRequest struct {
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1"`
}

type sendMessageRequest struct {
	Text      string `json:"text" validate:"required"`
	MessageID string `json:"messageId,omitempty"`
}

// CreateChat creates a new chat between the caller and the given users
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.CreateChat(c.Request().Context(), userID, usecase.CreateChatInput{
		Name:           req.Name,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, chat)
}

// GetUserChats gets all chats for the authenticated user, newest first
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	items, total, err := h.chatUseCase.GetUserChats(c.Request().Context(), userID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, items, total, params.Page, params.PageSize)
}

// GetChatByID gets a specific chat the caller participates in
func (h *ChatHandler) GetChatByID(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	chat, err := h.chatUseCase.GetChatByID(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

// DeleteChat deletes a chat along with its messages and previews
func (h *ChatHandler) DeleteChat(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	if err := h.chatUseCase.DeleteChat(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted"})
}

// SendMessage appends a message to a chat
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, chatID, usecase.SendMessageInput{
		Text:      req.Text,
		MessageID: req.MessageID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetChatMessages gets a page of a chat's messages, oldest first
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")
	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.GetChatMessages(c.Request().Context(), userID, chatID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// MarkChatSeen flips the caller's chat-level seen flag
func (h *ChatHandler) MarkChatSeen(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")

	if err := h.chatUseCase.MarkChatSeen(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "ok"})
}

// MarkMessageSeen flips the caller's seen flag on one message
func (h *ChatHandler) MarkMessageSeen(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.Param("id")
	messageID := c.Param("messageId")

	if err := h.chatUseCase.MarkMessageSeen(c.Request().Context(), userID, chatID, messageID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "ok"})
}

// GetRecentMessages returns the caller's chat-preview rows
func (h *ChatHandler) GetRecentMessages(c echo.Context) error {
	userID := c.Get("uid").(string)

	entries, err := h.chatUseCase.GetRecentMessages(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, entries)
}
