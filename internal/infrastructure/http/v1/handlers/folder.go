package handlers

import (
	"github.com/gin-gonic/gin"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/folder"
	"docuvault/internal/infrastructure/http/v1/dto"
)

// FolderHandler handles folder and folder ACL endpoints.
type FolderHandler struct {
	*BaseHandler
	service *folder.Service
}

// NewFolderHandler creates a folder handler.
func NewFolderHandler(service *folder.Service) *FolderHandler {
	return &FolderHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Create handles POST /folders.
func (h *FolderHandler) Create(c *gin.Context) {
	var req dto.CreateFolderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var parentID *id.ID
	if req.ParentID != "" {
		parsed, err := id.Parse(req.ParentID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid parent id"))
			return
		}
		parentID = &parsed
	}

	f, err := h.service.Create(c.Request.Context(), req.Name, parentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, f.ID.String())
}

// Get handles GET /folders/:id.
func (h *FolderHandler) Get(c *gin.Context) {
	folderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	f, err := h.service.Get(c.Request.Context(), folderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

// List handles GET /folders.
func (h *FolderHandler) List(c *gin.Context) {
	var parentID *id.ID
	if raw := c.Query("parentId"); raw != "" {
		parsed, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid parent id"))
			return
		}
		parentID = &parsed
	}

	folders, err := h.service.List(c.Request.Context(), parentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, folders)
}

// Grant handles POST /folders/:id/grants.
func (h *FolderHandler) Grant(c *gin.Context) {
	folderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.GrantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	grant, err := h.service.Grant(c.Request.Context(), folderID, req.RoleID, access.Level(req.Level))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, grant)
}

// Revoke handles DELETE /folders/:id/grants/:roleId.
func (h *FolderHandler) Revoke(c *gin.Context) {
	folderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	roleID := c.Param("roleId")
	if roleID == "" {
		h.Error(c, apperror.NewValidation("role id is required"))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), folderID, roleID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ListGrants handles GET /folders/:id/grants.
func (h *FolderHandler) ListGrants(c *gin.Context) {
	folderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	grants, err := h.service.ListGrants(c.Request.Context(), folderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, grants)
}
