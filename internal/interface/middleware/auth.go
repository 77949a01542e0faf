package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/pkg/helpers"
	"github.com/halcyonlab/usergate/pkg/response"
)

// Auth validates the bearer token and requires a live server-side session
// that agrees with the token on user id and email. Either credential alone is
// not enough: the session dying (logout, delete) kills outstanding tokens.
// Sets userID, userName, and userEmail in the Gin context on success.
func Auth(sessions session.Store, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.AbortErrors(c, http.StatusUnauthorized, response.Msg("missing access token"))
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			response.AbortErrors(c, http.StatusUnauthorized, response.Msg("invalid access token"))
			return
		}

		sess, err := sessions.Get(c.Request.Context(), claims.UserID)
		if err != nil || sess == nil {
			response.AbortErrors(c, http.StatusUnauthorized, response.Msg("not logged in"))
			return
		}
		if sess.UserID != claims.UserID || sess.Email != claims.Email || sess.SID != claims.SessionID {
			response.AbortErrors(c, http.StatusUnauthorized, response.Msg("invalid access token"))
			return
		}

		c.Set("userID", sess.UserID)
		c.Set("userName", sess.Username)
		c.Set("userEmail", sess.Email)
		c.Next()
	}
}

// bearerToken reads the credential from the Authorization header, falling
// back to the access_token cookie set at login.
func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	if tok, err := c.Cookie("access_token"); err == nil {
		return tok
	}
	return ""
}
