package router

import (
	"github.com/labstack/echo/v4"

	"stompingground/internal/adapter/api/handler"
	"stompingground/internal/adapter/api/middleware"
)

// SetupUserRouter sets up registration and profile routes
func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	e.POST("/v1/auth/register", userHandler.Register)

	userGroup := e.Group("/v1/users")
	userGroup.Use(authMiddleware.Authenticate)

	userGroup.GET("/me", userHandler.GetProfile)
	userGroup.PATCH("/me", userHandler.UpdateProfile)
	userGroup.POST("/me/avatar", userHandler.UploadAvatar)
	userGroup.GET("/:id", userHandler.GetUserByID)
}
