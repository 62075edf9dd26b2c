package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// OTPHandler exposes the phone-scheme signup lifecycle.
type OTPHandler struct {
	cfg *config.AppConfig
	otp *usecase.OTPService
}

// NewOTPHandler constructs OTPHandler.
func NewOTPHandler(cfg *config.AppConfig, otp *usecase.OTPService) *OTPHandler {
	return &OTPHandler{cfg: cfg, otp: otp}
}

// RegisterRoutes binds the signup lifecycle routes.
func (h *OTPHandler) RegisterRoutes(r *gin.RouterGroup, otpMiddlewares ...gin.HandlerFunc) {
	r.POST("/signup", h.signup)

	if len(otpMiddlewares) > 0 {
		verifyChain := append([]gin.HandlerFunc{}, otpMiddlewares...)
		r.POST("/verify-otp", append(verifyChain, h.verify)...)

		resendChain := append([]gin.HandlerFunc{}, otpMiddlewares...)
		r.POST("/resend-otp", append(resendChain, h.resend)...)
		return
	}

	r.POST("/verify-otp", h.verify)
	r.POST("/resend-otp", h.resend)
}

// phoneSchemeOnly rejects requests when the email scheme is active.
func (h *OTPHandler) phoneSchemeOnly(c *gin.Context) bool {
	if h.cfg.Auth.Scheme() == string(domain.SchemePhone) {
		return true
	}

	RespondError(c, domain.ErrInvalidCredentials.WithMessage("Phone signup is not enabled."))
	return false
}

func (h *OTPHandler) signup(c *gin.Context) {
	if !h.phoneSchemeOnly(c) {
		return
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	principal, err := h.otp.Signup(c.Request.Context(), usecase.SignupInput{
		Phone:    strings.TrimSpace(req.Phone),
		Fullname: strings.TrimSpace(req.Fullname),
		Password: req.Password,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SignupResponse{
		ID:       principal.ID,
		Phone:    principal.Phone,
		IsActive: principal.IsActive,
		Message:  "Account created. A verification code has been sent.",
	})
}

func (h *OTPHandler) verify(c *gin.Context) {
	if !h.phoneSchemeOnly(c) {
		return
	}

	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		RespondError(c, domain.ErrOTPNotValid)
		return
	}

	if err := h.otp.VerifyOTP(c.Request.Context(), strings.TrimSpace(req.Phone), req.Code); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Account verified."})
}

func (h *OTPHandler) resend(c *gin.Context) {
	if !h.phoneSchemeOnly(c) {
		return
	}

	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	if err := h.otp.ResendOTP(c.Request.Context(), strings.TrimSpace(req.Phone)); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "A new verification code has been sent."})
}
