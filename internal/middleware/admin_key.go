package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// AdminKeyHeader carries the shared secret for owner-only routes.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey gates owner-only routes behind a bcrypt-hashed shared key.
// The hash lives in configuration so the plaintext never touches disk.
// An empty hash disables the routes entirely.
func AdminKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin endpoints are disabled"))
			c.Abort()
			return
		}
		key := strings.TrimSpace(c.GetHeader(AdminKeyHeader))
		if key == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "admin key required"))
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid admin key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
