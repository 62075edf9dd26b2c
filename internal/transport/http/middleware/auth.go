package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

const (
	// SubjectKey is the context key for the verified token subject
	SubjectKey = "subject"
	// AccessTokenKey is the context key for the raw bearer token
	AccessTokenKey = "access_token"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(c *gin.Context) (string, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", domain.ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.ErrMissingScheme
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", domain.ErrMissingToken
	}

	return token, nil
}

// RequireAuth verifies the bearer token and stores the subject and the raw
// token on the request context.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err != nil {
			abortWithAuthError(c, err)
			return
		}

		subject, err := auth.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			abortWithAuthError(c, err)
			return
		}

		c.Set(SubjectKey, subject)
		c.Set(AccessTokenKey, token)
		c.Set(PrincipalIDKey, subject.ID)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.PrincipalID = subject.ID
		}

		c.Next()
	}
}

func abortWithAuthError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		c.AbortWithStatusJSON(domainErr.Status, newErrorResponse(c, domainErr.Code, domainErr.Message))
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError,
		newErrorResponse(c, "internal/server-error", "authentication failed"))
}

// GetSubject retrieves the verified token subject from context (helper for handlers).
func GetSubject(c *gin.Context) (*domain.TokenSubject, bool) {
	value, exists := c.Get(SubjectKey)
	if !exists {
		return nil, false
	}

	subject, ok := value.(*domain.TokenSubject)
	return subject, ok
}

// GetAccessToken retrieves the raw bearer token stored by RequireAuth.
func GetAccessToken(c *gin.Context) (string, bool) {
	value, exists := c.Get(AccessTokenKey)
	if !exists {
		return "", false
	}

	token, ok := value.(string)
	return token, ok
}
