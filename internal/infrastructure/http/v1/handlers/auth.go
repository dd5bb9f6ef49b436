package handlers

import (
	"github.com/gin-gonic/gin"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/auth"
	"docuvault/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication and user administration endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), auth.Credentials{
		TenantID: req.TenantID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LoginResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   tokens.TokenType,
		ExpiresAt:   tokens.ExpiresAt,
	})
}

// Refresh handles POST /auth/refresh. Requires a valid (unexpired) token;
// the re-issued snapshot reflects current role assignments.
func (h *AuthHandler) Refresh(c *gin.Context) {
	tokens, err := h.service.RefreshToken(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   tokens.TokenType,
		ExpiresAt:   tokens.ExpiresAt,
	})
}

// Register handles POST /users.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, user.ID.String())
}

// GetUser handles GET /users/:id.
func (h *AuthHandler) GetUser(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, user)
}

// AssignRole handles POST /users/:id/roles.
func (h *AuthHandler) AssignRole(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.RoleAssignmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	roleID, err := id.Parse(req.RoleID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid role id"))
		return
	}

	if err := h.service.AssignRole(c.Request.Context(), userID, roleID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "role assigned")
}

// RevokeRole handles DELETE /users/:id/roles/:roleId.
func (h *AuthHandler) RevokeRole(c *gin.Context) {
	userID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	roleID, err := id.Parse(c.Param("roleId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid role id"))
		return
	}

	if err := h.service.RevokeRole(c.Request.Context(), userID, roleID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ListRoles handles GET /roles.
func (h *AuthHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, roles)
}

func (h *BaseHandler) parseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id").WithDetail("param", param))
		return id.Nil(), false
	}
	return parsed, true
}
