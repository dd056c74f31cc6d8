package domain

// Role is the actor's privilege level.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleSeller     Role = "seller"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Anonymous() bool {
	return a.ID == ""
}
