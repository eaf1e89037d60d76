package domain

import "time"

// Role user role codes
type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleQAManager     Role = "QA_MANAGER"
	RoleQAInspector   Role = "QA_INSPECTOR"
	RoleSafetyOfficer Role = "SAFETY_OFFICER"
	RoleDocController Role = "DOC_CONTROLLER"
	RoleOperator      Role = "OPERATOR"
	RoleSales         Role = "SALES"
)

var knownRoles = map[Role]bool{
	RoleAdmin: true, RoleQAManager: true, RoleQAInspector: true, RoleSafetyOfficer: true,
	RoleDocController: true, RoleOperator: true, RoleSales: true,
}

// Valid reports whether r is a known role code.
func (r Role) Valid() bool { return knownRoles[r] }

// User QMS user (mock identity, no credentials)
type User struct {
	Meta
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
}

// Users carry no business date; they are never range-filtered.
func (u User) RecordDate() time.Time { return u.CreatedAt }
func (u User) RecordStatus() string  { return activeStatus(u.Active) }
func (u User) SearchText() string {
	return joinSearch(u.Name, u.Email, string(u.Role), u.Department)
}

// HasRole reports whether the user holds one of roles. ADMIN holds every role.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
