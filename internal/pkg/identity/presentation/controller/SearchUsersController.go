package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/application/usecase"
	identity "shorewatch/internal/pkg/identity/domain"
	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/pkg/apperrors"
)

// SearchUsersController handles the user-search endpoint only (one controller per endpoint)
type SearchUsersController struct {
	UC *usecase.SearchUsersUseCase
}

func NewSearchUsersController(uc *usecase.SearchUsersUseCase) *SearchUsersController {
	return &SearchUsersController{UC: uc}
}

// Handle returns a gin handler matching the query against usernames and full
// names, excluding the caller.
func (h *SearchUsersController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":  string(apperrors.CodeUnauthenticated),
				"error": "authentication required",
			})
			return
		}

		query := c.Query("q")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		users, err := h.UC.Execute(ctx, usecase.SearchUsersInput{
			CallerID: callerID,
			Query:    query,
			Limit:    limit,
		})
		if err != nil {
			status := http.StatusInternalServerError
			msg := "internal error"
			switch apperrors.CodeOf(err) {
			case apperrors.CodeInvalidArgument:
				status, msg = http.StatusBadRequest, err.Error()
			case apperrors.CodeUnavailable:
				status, msg = http.StatusServiceUnavailable, "directory unavailable"
			}
			c.JSON(status, gin.H{"code": string(apperrors.CodeOf(err)), "error": msg})
			return
		}

		if users == nil {
			users = []identity.User{}
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}
