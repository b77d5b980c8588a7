package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// AuditWriter persists audit rows.
type AuditWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error
}

// Audit records an audit row after successful requests. The :id route parameter, when present,
// becomes the resource id.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if writer == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if actor, ok := CurrentActor(c); ok && actor.UserID != "" {
			userID = &actor.UserID
		}
		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"query":   c.Request.URL.RawQuery,
			"latency": time.Since(start).Milliseconds(),
		})

		if err := writer.Create(c.Request.Context(), nil, &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
		}); err != nil {
			logger.Warn("write audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
