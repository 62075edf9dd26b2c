package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// PasswordHandler exposes the password reset flow.
type PasswordHandler struct {
	auth *usecase.AuthService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(auth *usecase.AuthService) *PasswordHandler {
	return &PasswordHandler{auth: auth}
}

// RegisterRoutes binds the reset routes, applying optional middleware first.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, resetMiddlewares ...gin.HandlerFunc) {
	if len(resetMiddlewares) > 0 {
		requestChain := append([]gin.HandlerFunc{}, resetMiddlewares...)
		r.POST("/request-password-reset", append(requestChain, h.request)...)

		completeChain := append([]gin.HandlerFunc{}, resetMiddlewares...)
		r.POST("/reset-password-completed", append(completeChain, h.complete)...)
		return
	}

	r.POST("/request-password-reset", h.request)
	r.POST("/reset-password-completed", h.complete)
}

func (h *PasswordHandler) request(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), strings.TrimSpace(req.Identifier)); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset instructions sent."})
}

func (h *PasswordHandler) complete(c *gin.Context) {
	var req PasswordResetCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	err := h.auth.CompletePasswordReset(c.Request.Context(), usecase.CompletePasswordResetInput{
		ResetToken:      strings.TrimSpace(req.ResetToken),
		Identifier:      strings.TrimSpace(req.Identifier),
		Code:            strings.TrimSpace(req.Code),
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset completed."})
}
