package models

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleWholesale Role = "wholesale"
)

// Principal is the authenticated identity acting against the backend.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProfileRow is the backend row holding the role for a principal.
type ProfileRow struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Domain validates the row and returns the role it carries.
func (r ProfileRow) Domain() (Role, error) {
	switch Role(r.Role) {
	case RoleAdmin, RoleUser, RoleWholesale:
		return Role(r.Role), nil
	}
	return "", FieldError{Row: "profiles", Field: "role", Value: r.Role}
}
