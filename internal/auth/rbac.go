package auth

// Role names granted by the identity provider
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// HasRole reports whether identity holds role
func HasRole(identity *Identity, role string) bool {
	if identity == nil {
		return false
	}
	for _, r := range identity.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasRole reports whether the identity holds role
func (i *Identity) HasRole(role string) bool {
	return HasRole(i, role)
}

// IsTeacher is shorthand for HasRole(RoleTeacher)
func (i *Identity) IsTeacher() bool {
	return HasRole(i, RoleTeacher)
}
