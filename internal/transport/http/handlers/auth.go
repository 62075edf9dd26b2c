package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/transport/http/middleware"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// AuthHandler exposes authentication and token introspection endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of login.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	authRequired := middleware.RequireAuth(h.auth)

	r.GET("/logout", authRequired, h.logout)
	r.POST("/refresh", h.refresh)
	r.GET("/check-access", authRequired, h.checkAccess)
	r.GET("/check-validate-access-token", h.validateToken)
	r.PUT("/change-password/:id", authRequired, h.changePassword)
	r.GET("/check-user-attribute", h.checkUserAttribute)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Identifier:        strings.TrimSpace(req.Identifier),
		Password:          req.Password,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                c.ClientIP(),
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		User:         result.Subject,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	token, ok := middleware.GetAccessToken(c)
	if !ok {
		RespondError(c, domain.ErrMissingToken)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out."})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		User:         result.Subject,
	})
}

func (h *AuthHandler) checkAccess(c *gin.Context) {
	permissions := c.QueryArray("permission")
	if len(permissions) == 0 {
		RespondError(c, domain.ErrInvalidCredentials.WithMessage("At least one permission is required."))
		return
	}

	token, ok := middleware.GetAccessToken(c)
	if !ok {
		RespondError(c, domain.ErrMissingToken)
		return
	}

	granted, err := h.auth.CheckAccess(c.Request.Context(), token, permissions)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckAccessResponse{Access: granted})
}

// validateToken answers liveness probes from sibling services. A dead token
// is a negative answer, not a transport failure.
func (h *AuthHandler) validateToken(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		RespondError(c, domain.ErrMissingToken)
		return
	}

	subject, err := h.auth.ValidateAccessToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredAccessToken) || errors.Is(err, domain.ErrInvalidAccessToken) {
			c.JSON(http.StatusOK, ValidateTokenResponse{Active: false})
			return
		}
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ValidateTokenResponse{Active: true, UserInfo: subject})
}

func (h *AuthHandler) changePassword(c *gin.Context) {
	principalID := strings.TrimSpace(c.Param("id"))

	subject, ok := middleware.GetSubject(c)
	if !ok {
		RespondError(c, domain.ErrMissingToken)
		return
	}
	// A principal may only rotate its own password.
	if subject.ID != principalID {
		RespondError(c, domain.ErrInsufficientPermission)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), usecase.ChangePasswordInput{
		PrincipalID:     principalID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed."})
}

func (h *AuthHandler) checkUserAttribute(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	value := c.Query("value")
	inAttributes, _ := strconv.ParseBool(c.DefaultQuery("in_attributes", "false"))

	exists, err := h.auth.CheckUserAttribute(c.Request.Context(), key, value, inAttributes)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckAttributeResponse{Exists: exists})
}
