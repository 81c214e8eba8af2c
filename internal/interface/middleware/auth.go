package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
	"github.com/oksasatya/swastha-auth/pkg/response"
)

// Context keys set by Auth.
const (
	CtxUserID  = "userID"
	CtxIsAdmin = "isAdmin"
	CtxClaims  = "claims"
)

// bearerToken reads the token from the Authorization header, falling back to
// the access_token cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	tok, _ := c.Cookie(helpers.AccessCookie)
	return tok
}

// Auth validates the access token and, when sessions is set, that the
// token's session is still the current one of the account.
func Auth(jwt *helpers.JWTManager, sessions repository.SessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "authorization header missing", nil)
			c.Abort()
			return
		}
		claims, err := jwt.Verify(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		if sessions != nil {
			ok, err := sessions.Active(c.Request.Context(), claims.AccountID, claims.SessionID())
			if err != nil {
				response.Error[any](c, http.StatusInternalServerError, "session lookup failed", nil)
				c.Abort()
				return
			}
			if !ok {
				response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
				c.Abort()
				return
			}
		}

		c.Set(CtxUserID, claims.AccountID)
		c.Set(CtxIsAdmin, claims.IsAdmin)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxIsAdmin) {
			response.Error[any](c, http.StatusForbidden, "admin access required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SelfOrAdmin allows the request when the :param path value is the caller's
// own id or the caller is an admin.
func SelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(CtxIsAdmin) || c.Param(param) == c.GetString(CtxUserID) {
			c.Next()
			return
		}
		response.Error[any](c, http.StatusForbidden, "access denied", nil)
		c.Abort()
	}
}
