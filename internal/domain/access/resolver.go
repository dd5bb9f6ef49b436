package access

import (
	"docuvault/internal/core/apperror"
	"docuvault/internal/domain/workflow"
)

// Decision is the resolver outcome. A normal denial is a value, not an error;
// only a malformed identity produces an error.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "ALLOW"
	}
	return "DENY"
}

// Request describes one authorization question: may the identity perform the
// action requiring Permission, optionally scoped to a folder and a concrete
// document?
type Request struct {
	// Permission is the required permission code.
	Permission string

	// FolderGrants are the FolderPermission rows for the target folder,
	// across all roles. The resolver filters them to the identity's own
	// roles. Empty means "no ACL": tenant RBAC stands unchanged.
	FolderGrants []FolderPermission

	// IsCreator is true when the caller created the target document.
	IsCreator bool

	// DocumentStatus is the stored status of the target document, when the
	// request concerns one. The creator bypass only applies while the
	// document is still DRAFT or SUBMITTED.
	DocumentStatus workflow.Status
}

// Resolve answers ALLOW or DENY for the request. It is a pure function over
// its inputs: no I/O, no hidden state. The decision table:
//
//  1. Tenant RBAC is the default gate. Administrative codes (create, approve,
//     role assignment, audit) are decided by RBAC alone.
//  2. A folder WRITE override for one of the identity's roles grants
//     CRUD-class write access even without the RBAC code.
//  3. A folder READ override (with no WRITE from another held role) restricts
//     the identity to read-class access in that folder even when RBAC grants
//     write.
//  4. WRITE wins over READ when the identity holds roles with conflicting
//     overrides on the same folder.
//  5. The creator may perform edit/withdraw-class actions on their own
//     DRAFT or SUBMITTED document regardless of the folder ACL outcome.
func Resolve(identity *Identity, req Request) (Decision, error) {
	if identity == nil {
		return Deny, apperror.NewInvalidIdentity("identity snapshot is required")
	}
	if identity.TenantID == "" {
		return Deny, apperror.NewInvalidIdentity("identity has no tenant")
	}
	if req.Permission == "" {
		return Deny, apperror.NewInvalidIdentity("permission code is required")
	}

	hasRBAC := identity.HasPermission(req.Permission)
	level, hasOverride := strongestOverride(identity, req.FolderGrants)

	var decision Decision
	switch classOf(req.Permission) {
	case classAdmin:
		// Folder ACL never adjusts administrative capabilities.
		decision = fromBool(hasRBAC)

	case classRead:
		// Any explicit folder grant includes read access.
		decision = fromBool(hasRBAC || hasOverride)

	case classWrite:
		switch {
		case hasOverride && level == LevelWrite:
			decision = Allow
		case hasOverride:
			// Strongest override is READ: most-restrictive wins for this
			// folder, even against an RBAC write grant.
			decision = Deny
		default:
			decision = fromBool(hasRBAC)
		}

	case classLifecycle:
		decision = fromBool(hasRBAC)
	}

	if decision == Deny && creatorBypass(req) {
		decision = Allow
	}

	return decision, nil
}

// strongestOverride returns the most permissive level among the identity's
// own roles for the folder, and whether any such override exists.
func strongestOverride(identity *Identity, grants []FolderPermission) (Level, bool) {
	var level Level
	found := false
	for _, g := range grants {
		if !identity.HasRole(g.RoleID) {
			continue
		}
		if !found || g.Level == LevelWrite {
			level = g.Level
			found = true
		}
	}
	return level, found
}

// creatorBypass reports whether the creator tie-break rescues a denial.
// It applies to edit/withdraw-class operations on DRAFT or SUBMITTED
// documents; administrative capabilities stay RBAC-gated.
func creatorBypass(req Request) bool {
	if !req.IsCreator {
		return false
	}
	switch classOf(req.Permission) {
	case classWrite, classLifecycle:
	default:
		return false
	}
	return req.DocumentStatus == workflow.StatusDraft ||
		req.DocumentStatus == workflow.StatusSubmitted
}

func fromBool(allow bool) Decision {
	if allow {
		return Allow
	}
	return Deny
}
