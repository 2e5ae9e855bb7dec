package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/middleware"
	"github.com/noah-isme/edu-collective-api/internal/models"
)

func identityFromContext(c *gin.Context) *models.IdentityClaims {
	value, exists := c.Get(middleware.ContextIdentityKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.IdentityClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the caller's ledger account, ZeroAccount
// when the request carries no identity.
func actorFromContext(c *gin.Context) models.Account {
	claims := identityFromContext(c)
	if claims == nil {
		return models.ZeroAccount
	}
	return claims.Account
}
