// Package access derives what the current role may do.
package access

import "github.com/sharefold/sharefold/internal/models"

// Capabilities is the capability set of a role.
type Capabilities struct {
	CanUpload   bool
	CanDownload bool
	IsAdmin     bool
}

// Action is an operation gated by role.
type Action int

const (
	ActionUpload Action = iota
	ActionDownload
	ActionAdminister
)

func (a Action) String() string {
	switch a {
	case ActionUpload:
		return "upload"
	case ActionDownload:
		return "download"
	case ActionAdminister:
		return "administer"
	default:
		return "unknown"
	}
}

// For returns the capabilities of role. Unknown roles get nothing.
func For(role models.Role) Capabilities {
	return Capabilities{
		CanUpload:   role == models.RoleAdmin || role == models.RoleUploader,
		CanDownload: role == models.RoleAdmin || role == models.RoleReader,
		IsAdmin:     role == models.RoleAdmin,
	}
}

// Allows reports whether the capability set permits action.
func (c Capabilities) Allows(a Action) bool {
	switch a {
	case ActionUpload:
		return c.CanUpload
	case ActionDownload:
		return c.CanDownload
	case ActionAdminister:
		return c.IsAdmin
	}
	return false
}
