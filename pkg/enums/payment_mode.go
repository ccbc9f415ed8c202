package enums

import "fmt"

// PaymentMode records how the traveler intends to pay. Informational only;
// no gateway integration happens in this service.
type PaymentMode string

const (
	PaymentModeCard     PaymentMode = "card"
	PaymentModeTransfer PaymentMode = "transfer"
	PaymentModeCash     PaymentMode = "cash"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCard,
	PaymentModeTransfer,
	PaymentModeCash,
}

// String implements fmt.Stringer.
func (p PaymentMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMode.
func (p PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
