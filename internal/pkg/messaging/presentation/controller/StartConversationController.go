package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/internal/pkg/messaging/application/usecase"
	"shorewatch/pkg/apperrors"
)

// StartConversationController handles the open-conversation endpoint only (one controller per endpoint)
type StartConversationController struct {
	UC *usecase.StartConversationUseCase
}

func NewStartConversationController(uc *usecase.StartConversationUseCase) *StartConversationController {
	return &StartConversationController{UC: uc}
}

// startConversationRequest is the DTO for the HTTP request body
type startConversationRequest struct {
	RecipientID int64 `json:"recipient_id" binding:"required"`
}

// Handle returns a gin handler resolving the pair's conversation, creating it
// on first contact.
func (h *StartConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		var req startConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		conv, err := h.UC.Execute(ctx, usecase.StartConversationInput{
			CallerID:    callerID,
			RecipientID: req.RecipientID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         conv.ID,
			"peer_id":    conv.PeerOf(callerID),
			"created_at": conv.CreatedAt,
		})
	}
}
