package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/internal/pkg/messaging/application/usecase"
	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/pkg/apperrors"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(uc *usecase.SendMessageUseCase) *SendMessageController {
	return &SendMessageController{UC: uc}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	RecipientID int64  `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
}

// Handle returns a gin handler that stores a message and reports where it landed
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		res, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			SenderID:    senderID,
			RecipientID: req.RecipientID,
			Content:     req.Content,
			MessageType: messaging.MessageType(req.MessageType),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":         res.Message,
			"conversation_id": res.ConversationID,
		})
	}
}
