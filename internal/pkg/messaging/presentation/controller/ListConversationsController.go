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

// ListConversationsController handles the inbox endpoint only (one controller per endpoint)
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase) *ListConversationsController {
	return &ListConversationsController{UC: uc}
}

// conversationView is the DTO for one inbox row
type conversationView struct {
	ID          int64              `json:"id"`
	PeerID      int64              `json:"peer_id"`
	CreatedAt   time.Time          `json:"created_at"`
	LastMessage *messaging.Message `json:"last_message,omitempty"`
	UnreadCount int                `json:"unread_count"`
}

// Handle returns a gin handler serving the caller's inbox, most recently
// active first.
func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		summaries, err := h.UC.Execute(ctx, callerID)
		if err != nil {
			respondError(c, err)
			return
		}

		views := make([]conversationView, 0, len(summaries))
		for _, s := range summaries {
			v := conversationView{
				ID:          s.Conversation.ID,
				PeerID:      s.PeerID,
				CreatedAt:   s.Conversation.CreatedAt,
				UnreadCount: s.Unread,
			}
			if s.LastMessage != nil {
				v.LastMessage = s.LastMessage
			}
			views = append(views, v)
		}

		c.JSON(http.StatusOK, gin.H{"conversations": views})
	}
}
