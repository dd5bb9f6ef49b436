package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/document"
	"docuvault/internal/domain/workflow"
	"docuvault/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles document CRUD, versions, and lifecycle endpoints.
type DocumentHandler struct {
	*BaseHandler
	service *document.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(service *document.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// documentResponse augments the stored document with its derived status.
type documentResponse struct {
	*document.Document
	EffectiveStatus workflow.Status `json:"effectiveStatus"`
}

func toDocumentResponse(doc *document.Document) documentResponse {
	return documentResponse{
		Document:        doc,
		EffectiveStatus: doc.EffectiveStatus(time.Now().UTC()),
	}
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	folderID, err := id.Parse(req.FolderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid folder id"))
		return
	}

	doc, err := h.service.Create(c.Request.Context(), folderID, req.Title, req.Description, req.ExpiresAt)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, toDocumentResponse(doc))
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	var req dto.ListDocumentsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter := document.Filter{
		Search: req.Search,
		Limit:  req.PageSize,
		Offset: req.Offset(),
	}
	if req.FolderID != "" {
		folderID, err := id.Parse(req.FolderID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid folder id"))
			return
		}
		filter.FolderID = &folderID
	}
	if req.Status != "" {
		status := workflow.Status(req.Status)
		if !status.Valid() {
			h.Error(c, apperror.NewValidation("invalid status").WithDetail("status", req.Status))
			return
		}
		filter.Status = &status
	}

	docs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]documentResponse, 0, len(docs))
	for i := range docs {
		items = append(items, toDocumentResponse(&docs[i]))
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		Pagination: dto.NewPaginationResponse(req.Page, req.PageSize, total),
	})
}

// Update handles PUT /documents/:id.
func (h *DocumentHandler) Update(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.Update(c.Request.Context(), docID, req.Title, req.Description, req.ExpiresAt)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, toDocumentResponse(doc))
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Transition handles POST /documents/:id/transition.
func (h *DocumentHandler) Transition(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	summary, err := h.service.Transition(c.Request.Context(), docID, workflow.Action(req.Action))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// CreateRevision handles POST /documents/:id/revisions.
func (h *DocumentHandler) CreateRevision(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	successor, err := h.service.CreateRevision(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, successor.ID.String())
}

// AddVersion handles POST /documents/:id/versions.
func (h *DocumentHandler) AddVersion(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddVersionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	v, err := h.service.AddVersion(c.Request.Context(), docID,
		req.FileName, req.ContentType, req.StorageKey, req.Checksum, req.SizeBytes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, v.ID.String())
}

// ListVersions handles GET /documents/:id/versions.
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	docID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, versions)
}
