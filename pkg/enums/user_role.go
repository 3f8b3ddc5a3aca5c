package enums

import "fmt"

// UserRole is the top-level account role carried in access tokens.
type UserRole string

const (
	UserRoleFarmer    UserRole = "FARMER"
	UserRoleLandowner UserRole = "LANDOWNER"
	UserRoleInvestor  UserRole = "INVESTOR"
	UserRoleVendor    UserRole = "VENDOR"
	UserRoleAdmin     UserRole = "ADMIN"
)

var validUserRoles = []UserRole{
	UserRoleFarmer,
	UserRoleLandowner,
	UserRoleInvestor,
	UserRoleVendor,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// BuyerRole narrows the user role to its buyer equivalent when applicable.
func (u UserRole) BuyerRole() (BuyerRole, bool) {
	role := BuyerRole(u)
	if role.IsValid() {
		return role, true
	}
	return "", false
}
