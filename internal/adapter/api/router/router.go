package router

import (
	"github.com/labstack/echo/v4"

	"stompingground/internal/adapter/api/handler"
	"stompingground/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	userHandler *handler.UserHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
) {
	SetupHealthRouter(e, healthHandler)
	SetupUserRouter(e, userHandler, authMiddleware)
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler, authMiddleware)
}
