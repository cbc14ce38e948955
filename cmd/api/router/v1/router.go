package v1

import (
	"github.com/gin-gonic/gin"

	"shorewatch/internal/pkg/identity/middleware"
	httpHandler "shorewatch/internal/pkg/messaging/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1.
// Every route in this version requires an authenticated caller.
func RegisterRoutes(r *gin.Engine, jwtSecret, jwtIssuer string, deps httpHandler.Deps) {
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(jwtSecret, jwtIssuer))
	httpHandler.RegisterRoutes(v1, deps)
}
