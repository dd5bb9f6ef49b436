package access

import (
	"context"

	"docuvault/internal/core/id"
)

// ACLRepository reads folder ACL rows. Mutation of grants lives in the
// folder domain; the resolver only ever reads.
type ACLRepository interface {
	// ListForFolder returns all FolderPermission rows for a folder within a
	// tenant, across all roles. An empty result means "no ACL".
	ListForFolder(ctx context.Context, tenantID string, folderID id.ID) ([]FolderPermission, error)
}
