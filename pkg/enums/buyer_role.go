package enums

import "fmt"

// BuyerRole identifies the class of account allowed to purchase on the
// marketplace.
type BuyerRole string

const (
	BuyerRoleFarmer    BuyerRole = "FARMER"
	BuyerRoleLandowner BuyerRole = "LANDOWNER"
	BuyerRoleInvestor  BuyerRole = "INVESTOR"
)

var validBuyerRoles = []BuyerRole{
	BuyerRoleFarmer,
	BuyerRoleLandowner,
	BuyerRoleInvestor,
}

// String implements fmt.Stringer.
func (b BuyerRole) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BuyerRole.
func (b BuyerRole) IsValid() bool {
	for _, candidate := range validBuyerRoles {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBuyerRole converts raw input into a BuyerRole.
func ParseBuyerRole(value string) (BuyerRole, error) {
	for _, candidate := range validBuyerRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid buyer role %q", value)
}
