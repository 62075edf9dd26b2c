package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

// RoleHandler exposes role management and principal activation endpoints.
// Every route here is admin-gated by the caller.
type RoleHandler struct {
	roles *usecase.RoleService
	auth  *usecase.AuthService
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(roles *usecase.RoleService, auth *usecase.AuthService) *RoleHandler {
	return &RoleHandler{roles: roles, auth: auth}
}

// RegisterRoutes binds role management routes.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.GET("/:id", h.get)
	r.PUT("/:id/permissions", h.setPermissions)
}

// RegisterUserRoutes binds principal lifecycle routes.
func (h *RoleHandler) RegisterUserRoutes(r *gin.RouterGroup) {
	r.PUT("/:id/activate", h.activate)
}

func (h *RoleHandler) create(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), usecase.CreateRoleInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, role)
}

func (h *RoleHandler) get(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) setPermissions(c *gin.Context) {
	var req SetPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalidPayload(c)
		return
	}

	roleID := strings.TrimSpace(c.Param("id"))
	if err := h.roles.SetPermissions(c.Request.Context(), roleID, req.Permissions); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Role permissions replaced."})
}

func (h *RoleHandler) activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		RespondInvalidPayload(c)
		return
	}

	principalID := strings.TrimSpace(c.Param("id"))
	if principalID == "" {
		RespondError(c, domain.ErrUserNotFound)
		return
	}

	if err := h.auth.SetPrincipalActive(c.Request.Context(), principalID, *req.Active); err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Account activation updated."})
}
