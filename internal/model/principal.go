package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleTechnician Role = "TECHNICIAN"
	RoleCustomer   Role = "CUSTOMER"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool      { return p.Role == RoleAdmin }
func (p Principal) IsManager() bool    { return p.Role == RoleManager }
func (p Principal) IsTechnician() bool { return p.Role == RoleTechnician }
func (p Principal) IsCustomer() bool   { return p.Role == RoleCustomer }

// CanManageBilling reports whether the caller may create or mutate
// quotes and invoices.
func (p Principal) CanManageBilling() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}
