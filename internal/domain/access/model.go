// Package access provides the authorization core: tenant RBAC combined with
// per-folder ACL overrides.
package access

import (
	"time"

	"docuvault/internal/core/id"
)

// Level is the access level a folder ACL entry binds a role to.
type Level string

const (
	LevelRead  Level = "READ"
	LevelWrite Level = "WRITE"
)

// Permission codes. Codes are global and tenant-independent; roles reference
// them by value and they are immutable once created.
const (
	PermDocumentRead          = "DOCUMENT_READ"
	PermDocumentCreate        = "DOCUMENT_CREATE"
	PermDocumentUpdate        = "DOCUMENT_UPDATE"
	PermDocumentDelete        = "DOCUMENT_DELETE"
	PermDocumentUploadVersion = "DOCUMENT_UPLOAD_VERSION"
	PermDocumentSubmit        = "DOCUMENT_SUBMIT"
	PermDocumentWithdraw      = "DOCUMENT_WITHDRAW"
	PermDocumentApprove       = "DOCUMENT_APPROVE"
	PermDocumentReject        = "DOCUMENT_REJECT"
	PermDocumentObsolete      = "DOCUMENT_OBSOLETE"
	PermFolderManage          = "FOLDER_MANAGE"
	PermRoleAssign            = "ROLE_ASSIGN"
	PermUserManage            = "USER_MANAGE"
	PermAuditView             = "AUDIT_VIEW"
)

// permissionClass groups codes by how folder ACL interacts with them.
type permissionClass int

const (
	// classRead: read-class document access. Granted by RBAC or by any
	// folder override (READ or WRITE).
	classRead permissionClass = iota

	// classWrite: document CRUD-class write access. A folder WRITE override
	// grants it even without the RBAC code; a folder READ override denies it
	// even with the RBAC code (most-restrictive wins for that folder).
	classWrite

	// classLifecycle: submit/withdraw-class operations. Pure RBAC, folder ACL
	// does not adjust them, but the creator bypass applies while the document
	// is still DRAFT or SUBMITTED.
	classLifecycle

	// classAdmin: global capabilities (create, approve, role assignment,
	// audit export). RBAC only; never unlocked by folder ACL or creator
	// bypass.
	classAdmin
)

var permissionClasses = map[string]permissionClass{
	PermDocumentRead:          classRead,
	PermDocumentUpdate:        classWrite,
	PermDocumentDelete:        classWrite,
	PermDocumentUploadVersion: classWrite,
	PermDocumentSubmit:        classLifecycle,
	PermDocumentWithdraw:      classLifecycle,
	PermDocumentCreate:        classAdmin,
	PermDocumentApprove:       classAdmin,
	PermDocumentReject:        classAdmin,
	PermDocumentObsolete:      classAdmin,
	PermFolderManage:          classAdmin,
	PermRoleAssign:            classAdmin,
	PermUserManage:            classAdmin,
	PermAuditView:             classAdmin,
}

// classOf returns the interaction class for a permission code.
// Unknown codes are treated as administrative: pure RBAC, no overrides.
func classOf(code string) permissionClass {
	if c, ok := permissionClasses[code]; ok {
		return c
	}
	return classAdmin
}

// FolderPermission binds a Role to an explicit access level for one folder.
type FolderPermission struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	FolderID  id.ID     `db:"folder_id" json:"folderId"`
	RoleID    string    `db:"role_id" json:"roleId"`
	Level     Level     `db:"level" json:"level"`
	GrantedBy string    `db:"granted_by" json:"grantedBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
