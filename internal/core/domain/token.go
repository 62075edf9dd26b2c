package domain

// RoleSnapshot is the role view embedded into token subjects. Permissions are
// deliberately excluded; consumers resolve them through the permission
// resolver, which keeps tokens small and allows eager cache invalidation.
type RoleSnapshot struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TokenSubject is the sanitized principal snapshot carried inside every
// access and refresh token under the "subject" claim. Other microservices
// decode this shape directly to avoid a network round-trip; changing it is a
// breaking change.
type TokenSubject struct {
	ID       string       `json:"_id"`
	Fullname string       `json:"fullname,omitempty"`
	Email    string       `json:"email,omitempty"`
	Phone    string       `json:"phonenumber,omitempty"`
	IsActive bool         `json:"is_active"`
	Role     RoleSnapshot `json:"role"`
}

// NewTokenSubject builds the subject snapshot from a principal and its
// expanded role.
func NewTokenSubject(principal Principal, role Role) TokenSubject {
	clean := principal.Sanitized()
	return TokenSubject{
		ID:       clean.ID,
		Fullname: clean.Fullname,
		Email:    clean.Email,
		Phone:    clean.Phone,
		IsActive: clean.IsActive,
		Role: RoleSnapshot{
			ID:   role.ID,
			Name: role.Name,
			Slug: role.Slug,
		},
	}
}
