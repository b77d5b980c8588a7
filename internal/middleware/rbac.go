package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-allocation-api/internal/models"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
	"github.com/noah-isme/exam-allocation-api/pkg/response"
)

// RequireRoles admits requests whose token carries one of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, "role may not perform this operation",
				map[string]any{"role": claims.Role}))
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}
