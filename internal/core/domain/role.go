package domain

import "time"

// PermissionGroup holds the permission codes owned by a single service.
type PermissionGroup struct {
	Service     string       `json:"service"`
	Permissions []Permission `json:"permissions"`
}

// Permission identifies one allowed action by its opaque code.
type Permission struct {
	Code        string  `json:"code"`
	Description *string `json:"description,omitempty"`
}

// Role is the sole unit of authorization. Permissions are attached to roles,
// never directly to principals.
type Role struct {
	ID          string
	Name        string
	Slug        string
	Description *string
	Permissions []PermissionGroup
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionCodes flattens the role's permission groups into a single set.
// Pure function of the role document.
func (r Role) PermissionCodes() map[string]struct{} {
	codes := make(map[string]struct{})
	for _, group := range r.Permissions {
		for _, perm := range group.Permissions {
			if perm.Code == "" {
				continue
			}
			codes[perm.Code] = struct{}{}
		}
	}
	return codes
}
