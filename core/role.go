package core

// Roles
const (
	RoleAdmin              Role = "admin"
	RoleInstitutionManager Role = "institution_manager"
	RoleTutor              Role = "tutor"
	RoleStudent            Role = "student"
)

var AllRoles = []Role{RoleAdmin, RoleInstitutionManager, RoleTutor, RoleStudent}

type Role string

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// Actor is an already-authenticated caller.
type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }

// SystemActor is used by internal callers such as the payment simulator and the admin CLI.
var SystemActor = Actor{UserID: "system", Role: RoleAdmin}
