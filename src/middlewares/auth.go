package middlewares

import (
	"net/http"
	"strings"
	"tbs/src/utils"

	"github.com/gin-gonic/gin"
)

// RequireAdmin authenticates requests with a Bearer token issued by the
// admin login endpoint. On success the session identity lands in the
// request context for downstream handlers.
func RequireAdmin(sessions utils.SessionStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Sessione admin non valida o scaduta."})
			return
		}
		session, ok := sessions.Get(strings.TrimSpace(token))
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Sessione admin non valida o scaduta."})
			return
		}
		ctx.Set("admin_email", session.Email)
		ctx.Set("admin_token", session.Token)
		ctx.Set("admin_expires", session.ExpiresAt)
		ctx.Next()
	}
}

// SecureHeaders sets baseline hardening headers on every response.
func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("Referrer-Policy", "no-referrer")
	ctx.Next()
}
