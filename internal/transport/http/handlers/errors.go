package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
)

// RespondError maps an error onto the taxonomy payload. Taxonomy members
// carry their own status and code; anything else becomes a generic 500.
func RespondError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		c.JSON(domainErr.Status, NewErrorResponse(c, domainErr.Code, domainErr.Message))
		return
	}

	c.JSON(http.StatusInternalServerError,
		NewErrorResponse(c, "internal/server-error", "An internal error occurred."))
}

// RespondInvalidPayload is the shared response for malformed request bodies.
func RespondInvalidPayload(c *gin.Context) {
	c.JSON(http.StatusBadRequest,
		NewErrorResponse(c, domain.ErrInvalidCredentials.Code, "Invalid request payload."))
}
