package enums

import "fmt"

// StockChangeSource records which flow mutated a product's stock.
type StockChangeSource string

const (
	StockChangeSourceCheckout StockChangeSource = "CHECKOUT"
	StockChangeSourceCancel   StockChangeSource = "CANCELLATION"
	StockChangeSourceManual   StockChangeSource = "MANUAL"
	StockChangeSourceBulk     StockChangeSource = "BULK_UPDATE"
)

var validStockChangeSources = []StockChangeSource{
	StockChangeSourceCheckout,
	StockChangeSourceCancel,
	StockChangeSourceManual,
	StockChangeSourceBulk,
}

// String implements fmt.Stringer.
func (s StockChangeSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockChangeSource.
func (s StockChangeSource) IsValid() bool {
	for _, candidate := range validStockChangeSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockChangeSource converts raw input into a StockChangeSource.
func ParseStockChangeSource(value string) (StockChangeSource, error) {
	for _, candidate := range validStockChangeSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change source %q", value)
}
