package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/internal/repository"
)

// Audit creates a middleware that records audit logs after successful
// requests. Failures to persist the log never affect the response.
func Audit(repo *repository.MemberRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var account *models.Account
		if raw, ok := c.Get(ContextIdentityKey); ok {
			if claims, ok := raw.(*models.IdentityClaims); ok && claims.Account != models.ZeroAccount {
				account = &claims.Account
			}
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			Account:    account,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Payload:    payload,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
