package handlers

import (
	"github.com/gin-gonic/gin"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/audit"
)

// AuditHandler exposes the audit trail to readers holding AUDIT_VIEW.
type AuditHandler struct {
	*BaseHandler
	reader   audit.Reader
	resolver *access.Service
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(reader audit.Reader, resolver *access.Service) *AuditHandler {
	return &AuditHandler{
		BaseHandler: NewBaseHandler(),
		reader:      reader,
		resolver:    resolver,
	}
}

// ListByEntity handles GET /audit/:entityType/:id.
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	entityType := c.Param("entityType")
	switch entityType {
	case audit.EntityDocument, audit.EntityFolder, audit.EntityUser:
	default:
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("entity_type", entityType))
		return
	}

	entityID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := h.resolver.Authorize(ctx, identity, access.PermAuditView, nil, nil); err != nil {
		h.Error(c, err)
		return
	}

	limit := h.ParseIntQuery(c, "limit", 100)
	entries, err := h.reader.ListByEntity(ctx, user.TenantID, entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries)
}
