package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/internal/pkg/messaging/application/usecase"
	"shorewatch/pkg/apperrors"
)

// MarkReadController handles the read-receipt endpoint only (one controller per endpoint)
type MarkReadController struct {
	UC *usecase.MarkReadUseCase
}

func NewMarkReadController(uc *usecase.MarkReadUseCase) *MarkReadController {
	return &MarkReadController{UC: uc}
}

// Handle returns a gin handler stamping the peer's messages as read.
func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		readerID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		conversationID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
		if err != nil || conversationID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		marked, err := h.UC.Execute(ctx, usecase.MarkReadInput{
			ConversationID: conversationID,
			ReaderID:       readerID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"marked": marked})
	}
}
