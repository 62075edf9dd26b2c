package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
)

// RequireAdmin gates an endpoint on the default admin role. Must run after
// RequireAuth.
func RequireAdmin(adminSlug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := GetSubject(c)
		if !ok {
			c.AbortWithStatusJSON(domain.ErrMissingToken.Status,
				newErrorResponse(c, domain.ErrMissingToken.Code, domain.ErrMissingToken.Message))
			return
		}

		if subject.Role.Slug != adminSlug {
			c.AbortWithStatusJSON(domain.ErrInsufficientPermission.Status,
				newErrorResponse(c, domain.ErrInsufficientPermission.Code, domain.ErrInsufficientPermission.Message))
			return
		}

		c.Next()
	}
}
