package router

import (
	"github.com/labstack/echo/v4"

	"stompingground/internal/adapter/api/handler"
	"stompingground/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up WebSocket routes. Browsers can't set an
// Authorization header on the upgrade request, so the auth middleware also
// accepts a token query parameter here.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.Authenticate)
}
