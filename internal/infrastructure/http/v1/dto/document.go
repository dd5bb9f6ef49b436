package dto

import "time"

// CreateDocumentRequest creates a DRAFT document.
type CreateDocumentRequest struct {
	FolderID    string     `json:"folderId" binding:"required,uuid"`
	Title       string     `json:"title" binding:"required,max=512"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// UpdateDocumentRequest edits a DRAFT document's metadata.
type UpdateDocumentRequest struct {
	Title       string     `json:"title" binding:"required,max=512"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// TransitionRequest applies a lifecycle action to a document.
type TransitionRequest struct {
	Action string `json:"action" binding:"required,oneof=submit approve reject withdraw obsolete"`
}

// AddVersionRequest registers a new uploaded payload version.
type AddVersionRequest struct {
	FileName    string `json:"fileName" binding:"required,max=255"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes" binding:"required,min=1"`
	StorageKey  string `json:"storageKey" binding:"required"`
	Checksum    string `json:"checksum"`
}

// ListDocumentsRequest filters document listings.
type ListDocumentsRequest struct {
	PaginationRequest
	FolderID string `form:"folderId" binding:"omitempty,uuid"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}
