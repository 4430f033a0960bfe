package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/auth"
)

const (
	UserIDKey   = "userID"
	UserNameKey = "userName"
	identityKey = "identity"
)

var (
	errMissingAuthorization = errors.New("missing authorization")
	errMalformedBearer      = errors.New("invalid authorization header")
)

// AuthMiddleware verifies the bearer token and stores the caller identity on the context.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			log.Printf("auth rejected request_id=%s path=%s: %v", c.GetString(RequestIDKey), c.FullPath(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity records identity for downstream handlers.
func SetIdentity(c *gin.Context, identity auth.Identity) {
	c.Set(identityKey, identity)
	c.Set(UserIDKey, identity.UserID)
	c.Set(UserNameKey, identity.Name)
}

// IdentityFrom returns the identity set by AuthMiddleware.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := val.(auth.Identity)
	return identity, ok
}

func bearerFromRequest(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errMissingAuthorization
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		return "", errMalformedBearer
	}
	return token, nil
}
