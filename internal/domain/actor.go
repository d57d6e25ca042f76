package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleBooster  Role = "booster"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBooster, RoleCustomer, RoleSystem:
		return true
	}
	return false
}

// Actor is the verified caller of an engine operation. It is built per
// request from a validated token and passed explicitly; nothing caches it.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by background work such as the expiry sweeper.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// CanManageStaffing covers manual assignment, broadcast, confirm and complete.
func (a Actor) CanManageStaffing() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanActAsBooster reports whether a may respond on behalf of boosterID.
func (a Actor) CanActAsBooster(boosterID string) bool {
	if a.CanManageStaffing() {
		return true
	}
	return a.Role == RoleBooster && a.ID == boosterID
}

// CanCancel reports whether a may cancel a job owned by customerID.
func (a Actor) CanCancel(customerID string) bool {
	if a.CanManageStaffing() {
		return true
	}
	return a.Role == RoleCustomer && a.ID == customerID
}

// CanBook reports whether a may create a job for customerID.
func (a Actor) CanBook(customerID string) bool {
	if a.CanManageStaffing() {
		return true
	}
	return a.Role == RoleCustomer && a.ID == customerID
}
