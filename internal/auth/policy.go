package auth

import (
	"github.com/supportdesk/ticket-api/internal/domain"
	apperrors "github.com/supportdesk/ticket-api/pkg/util"
)

// Caller identifies who is performing an operation.
type Caller struct {
	ID   int64
	Role domain.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	switch c.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return false
	default:
		return false
	}
}

// CanActAsOwner reports whether the caller may act on a resource owned by ownerID.
func CanActAsOwner(c Caller, ownerID int64) bool {
	return c.IsAdmin() || (c.Role == domain.RoleUser && c.ID == ownerID)
}

// CanManageUsers reports whether the caller may change roles, delete or list accounts.
func CanManageUsers(c Caller) bool {
	return c.IsAdmin()
}

// AuthorizeOwner returns a Forbidden error unless CanActAsOwner holds.
func AuthorizeOwner(c Caller, ownerID int64, action string) error {
	if !CanActAsOwner(c, ownerID) {
		return apperrors.NewForbidden("not authorized to " + action)
	}
	return nil
}

// AuthorizeUserManagement returns a Forbidden error unless the caller is an admin.
func AuthorizeUserManagement(c Caller, action string) error {
	if !CanManageUsers(c) {
		return apperrors.NewForbidden("only admins can " + action)
	}
	return nil
}
