package entity

// Basis is the reason an entitlement was granted
type Basis string

const (
	BasisAdmin         Basis = "Admin"
	BasisDirectManager Basis = "DirectManager"
	BasisDelegation    Basis = "Delegation"
	BasisNone          Basis = "None"
)

// Entitlement answers whether an approver may act on an employee's timesheet
type Entitlement struct {
	Authorized   bool   `json:"authorized"`
	Basis        Basis  `json:"basis"`
	DelegationID *int64 `json:"delegation_id,omitempty"`
}

// Denied returns the not-authorized entitlement
func Denied() Entitlement {
	return Entitlement{Basis: BasisNone}
}

// Granted returns an authorized entitlement with the given basis
func Granted(basis Basis) Entitlement {
	return Entitlement{Authorized: true, Basis: basis}
}

// GrantedByDelegation returns an authorized entitlement carrying the delegation
func GrantedByDelegation(delegationID int64) Entitlement {
	id := delegationID
	return Entitlement{Authorized: true, Basis: BasisDelegation, DelegationID: &id}
}
