package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/internal/pkg/messaging/application/usecase"
	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/pkg/apperrors"
)

// GetMessagesController handles the message-history endpoint only (one controller per endpoint)
type GetMessagesController struct {
	UC *usecase.ListMessagesUseCase
}

func NewGetMessagesController(uc *usecase.ListMessagesUseCase) *GetMessagesController {
	return &GetMessagesController{UC: uc}
}

// Handle returns a gin handler serving one ascending page of history.
// after_id is the catch-up cursor; limit/offset page from the start.
func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		conversationID, err := strconv.ParseInt(c.Query("conversation_id"), 10, 64)
		if err != nil || conversationID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
			return
		}
		afterID, _ := strconv.ParseInt(c.DefaultQuery("after_id", "0"), 10, 64)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		out, err := h.UC.Execute(ctx, usecase.ListMessagesInput{
			ConversationID: conversationID,
			CallerID:       callerID,
			AfterID:        afterID,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		msgs := out.Messages
		if msgs == nil {
			msgs = []messaging.Message{}
		}
		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"has_more": out.HasMore,
		})
	}
}
