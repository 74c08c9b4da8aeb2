package constant

const (
	RoleStudent    = "student"
	RoleAgent      = "agent"
	RoleUniversity = "university"
	RoleAdmin      = "admin"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleAgent, RoleUniversity, RoleAdmin:
		return true
	}
	return false
}
