package entity

// Role is a user's organisational role
type Role string

const (
	RoleEmployee   Role = "EMPLOYEE"
	RoleManager    Role = "MANAGER"
	RoleLeadership Role = "LEADERSHIP"
	RoleAdmin      Role = "ADMIN"
)

var validRoles = map[Role]bool{
	RoleEmployee:   true,
	RoleManager:    true,
	RoleLeadership: true,
	RoleAdmin:      true,
}

// approvalCapableRoles may approve timesheets and receive delegations.
// This and IsAdmin are the only role sets in the codebase.
var approvalCapableRoles = map[Role]bool{
	RoleManager:    true,
	RoleLeadership: true,
	RoleAdmin:      true,
}

// IsApprovalCapable returns true if the role may approve timesheets
func (r Role) IsApprovalCapable() bool {
	return approvalCapableRoles[r]
}

// IsAdmin returns true for the top administrative role
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Delegation status constants, derived at query time
const (
	DelegationStatusActive    = "ACTIVE"
	DelegationStatusScheduled = "SCHEDULED"
	DelegationStatusExpired   = "EXPIRED"
	DelegationStatusRevoked   = "REVOKED"
)
