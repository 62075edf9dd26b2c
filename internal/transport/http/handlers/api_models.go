package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/middleware"
)

// ErrorResponse is the error payload shared by every endpoint. Callers
// branch on Code, so it always carries a taxonomy member.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier        string `json:"identifier" binding:"required"`
	Password          string `json:"password" binding:"required"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	TokenType    string              `json:"token_type"`
	User         domain.TokenSubject `json:"user"`
}

// RefreshRequest represents the payload to refresh a token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CheckAccessResponse carries the authorization decision.
type CheckAccessResponse struct {
	Access bool `json:"access"`
}

// ValidateTokenResponse carries the liveness flag and the embedded subject.
type ValidateTokenResponse struct {
	Active   bool                 `json:"active"`
	UserInfo *domain.TokenSubject `json:"user_info,omitempty"`
}

// ChangePasswordRequest defines the payload for the password change endpoint.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// PasswordResetRequest starts the reset flow for an identifier.
type PasswordResetRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// PasswordResetCompleteRequest finishes the reset flow. ResetToken is used
// under the email scheme; Identifier plus Code under the phone scheme.
type PasswordResetCompleteRequest struct {
	ResetToken      string `json:"reset_token"`
	Identifier      string `json:"identifier"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// SignupRequest defines the phone-scheme signup payload.
type SignupRequest struct {
	Phone    string `json:"phonenumber" binding:"required"`
	Fullname string `json:"fullname"`
	Password string `json:"password" binding:"required"`
}

// SignupResponse is returned after a signup creates a pending principal.
type SignupResponse struct {
	ID       string `json:"_id"`
	Phone    string `json:"phonenumber"`
	IsActive bool   `json:"is_active"`
	Message  string `json:"message"`
}

// OTPRequest carries the phone and, for verification, the code.
type OTPRequest struct {
	Phone string `json:"phonenumber" binding:"required"`
	Code  string `json:"code"`
}

// CheckAttributeResponse reports whether a principal matches the probe.
type CheckAttributeResponse struct {
	Exists bool `json:"exists"`
}

// CreateRoleRequest defines the role creation payload.
type CreateRoleRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description *string                  `json:"description"`
	Permissions []domain.PermissionGroup `json:"permissions"`
}

// SetPermissionsRequest replaces a role's permission groups.
type SetPermissionsRequest struct {
	Permissions []domain.PermissionGroup `json:"permissions" binding:"required"`
}

// ActivateRequest toggles the principal's active flag.
type ActivateRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse aggregates dependency checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
