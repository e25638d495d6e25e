package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"gameverify/internal/services"
)

type VerifyHandler struct {
	Svc services.VerificationService
}

func NewVerifyHandler(svc services.VerificationService) *VerifyHandler {
	return &VerifyHandler{Svc: svc}
}

// ConfirmInGame — POST /verify-ingame. Игровой сервер сообщает, что
// пользователь выполнил задание; в ответ мы его кикаем.
func (h *VerifyHandler) ConfirmInGame(c *gin.Context) {
	var req struct {
		DiscordUserID      string `json:"discordUserId" binding:"required"`
		VerificationTicket string `json:"verificationTicket"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Discord User ID is required."})
		return
	}

	if err := h.Svc.ConfirmInGame(c.Request.Context(), req.DiscordUserID, req.VerificationTicket); err != nil {
		switch {
		case errors.Is(err, services.ErrTicketRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Verification ticket is required."})
		case errors.Is(err, services.ErrTicketInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Verification ticket is invalid."})
		default:
			log.Printf("[WEBHOOK][err] confirm userID=%s: %v", req.DiscordUserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal server error occurred."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User kicked successfully."})
}

func (h *VerifyHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Verification service is running.")
}
