package types

import (
	"fmt"
	"regexp"
	"strings"
)

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// DeliveryAddress is the shipping destination captured on an order.
// Persisted as a jsonb column via the gorm json serializer.
type DeliveryAddress struct {
	Street   string `json:"street"`
	District string `json:"district"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Landmark string `json:"landmark,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Validate checks the required fields and the 6-digit pincode format.
func (a DeliveryAddress) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return fmt.Errorf("delivery address: missing street")
	}
	if strings.TrimSpace(a.District) == "" {
		return fmt.Errorf("delivery address: missing district")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("delivery address: missing state")
	}
	if !pincodeRe.MatchString(strings.TrimSpace(a.Pincode)) {
		return fmt.Errorf("delivery address: pincode must be 6 digits")
	}
	return nil
}
