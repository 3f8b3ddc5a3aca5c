package types

import "testing"

func TestDeliveryAddressValidate(t *testing.T) {
	t.Parallel()

	valid := DeliveryAddress{
		Street:   "14 Canal Road",
		District: "Nashik",
		State:    "Maharashtra",
		Pincode:  "422001",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*DeliveryAddress)
	}{
		{"missing street", func(a *DeliveryAddress) { a.Street = "  " }},
		{"missing district", func(a *DeliveryAddress) { a.District = "" }},
		{"missing state", func(a *DeliveryAddress) { a.State = "" }},
		{"short pincode", func(a *DeliveryAddress) { a.Pincode = "4220" }},
		{"alpha pincode", func(a *DeliveryAddress) { a.Pincode = "42200a" }},
	}
	for _, tc := range cases {
		addr := valid
		tc.mutate(&addr)
		if err := addr.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
