package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MosinFAM/moderated-blog/internal/models"

	"github.com/gin-gonic/gin"
)

const userKey = "auth.user"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		// browsers cannot set headers on websocket upgrades
		return c.Query("access_token")
	}
	return strings.TrimSpace(token)
}

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user on the context
func (s *Service) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c)
			return
		}
		user, err := s.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				slog.Error("authentication failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			unauthorized(c)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
}

// CurrentUser returns the user set by RequireUser
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
