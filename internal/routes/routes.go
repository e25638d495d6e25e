package routes

import (
	"github.com/gin-gonic/gin"

	"gameverify/internal/handlers"
	"gameverify/internal/middleware"
)

func SetupRoutes(r *gin.Engine, verifyHandler *handlers.VerifyHandler) *gin.Engine {
	// healthcheck платформы деплоя
	r.GET("/", verifyHandler.Health)

	limiter := middleware.NewRateLimiter(5, 10)
	r.POST("/verify-ingame", limiter.Limit(), verifyHandler.ConfirmInGame)

	return r
}
