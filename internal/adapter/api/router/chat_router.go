package router

import (
	"github.com/labstack/echo/v4"

	"stompingground/internal/adapter/api/handler"
	"stompingground/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate) // All chat endpoints require authentication

	// Chat management
	chatGroup.POST("", chatHandler.CreateChat)          // POST /v1/chats - Create new chat
	chatGroup.GET("", chatHandler.GetUserChats)         // GET /v1/chats - Get user's chats
	chatGroup.GET("/:id", chatHandler.GetChatByID)      // GET /v1/chats/:id - Get specific chat
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)    // DELETE /v1/chats/:id - Delete chat
	chatGroup.PUT("/:id/seen", chatHandler.MarkChatSeen) // PUT /v1/chats/:id/seen - Mark chat as seen

	// Message management
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)          // POST /v1/chats/:id/messages - Send message
	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages)       // GET /v1/chats/:id/messages - Get chat messages
	chatGroup.PUT("/:id/messages/:messageId/seen", chatHandler.MarkMessageSeen) // PUT /v1/chats/:id/messages/:messageId/seen - Mark message as seen

	// Chat-list preview rows
	recentGroup := e.Group("/v1/recent-messages")
	recentGroup.Use(authMiddleware.Authenticate)
	recentGroup.GET("", chatHandler.GetRecentMessages) // GET /v1/recent-messages
}
