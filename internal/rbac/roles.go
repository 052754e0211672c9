package rbac

// Role names. Keep these stable; they are part of auth contracts.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
