package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shorewatch/pkg/apperrors"
)

// statusFor maps taxonomy codes onto HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodePermissionDenied:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	// Surface only the taxonomy message; wrapped causes stay in the logs.
	msg := "internal error"
	var app *apperrors.AppError
	if errors.As(err, &app) && status != http.StatusInternalServerError {
		msg = app.Message
	}
	c.JSON(status, gin.H{
		"code":  string(apperrors.CodeOf(err)),
		"error": msg,
	})
}
