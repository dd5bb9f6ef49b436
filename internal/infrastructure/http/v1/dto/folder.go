package dto

// CreateFolderRequest creates a folder, optionally under a parent.
type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	ParentID string `json:"parentId" binding:"omitempty,uuid"`
}

// GrantRequest binds a role to an access level on a folder.
type GrantRequest struct {
	RoleID string `json:"roleId" binding:"required,uuid"`
	Level  string `json:"level" binding:"required,oneof=READ WRITE"`
}
