package enums

import "fmt"

// InstructionType classifies a money-movement instruction on the ledger.
type InstructionType string

const (
	InstructionTypePayin              InstructionType = "payin"
	InstructionTypeHostPayout         InstructionType = "host_payout"
	InstructionTypePlatformCommission InstructionType = "platform_commission"
	InstructionTypeRefundFromHost     InstructionType = "refund_from_host"
	InstructionTypeRefundFromPlatform InstructionType = "refund_from_platform"
)

var validInstructionTypes = []InstructionType{
	InstructionTypePayin,
	InstructionTypeHostPayout,
	InstructionTypePlatformCommission,
	InstructionTypeRefundFromHost,
	InstructionTypeRefundFromPlatform,
}

// String implements fmt.Stringer.
func (t InstructionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known InstructionType.
func (t InstructionType) IsValid() bool {
	for _, candidate := range validInstructionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsRefund reports whether the instruction returns money to a traveler.
func (t InstructionType) IsRefund() bool {
	return t == InstructionTypeRefundFromHost || t == InstructionTypeRefundFromPlatform
}

// ParseInstructionType converts raw input into an InstructionType.
func ParseInstructionType(value string) (InstructionType, error) {
	for _, candidate := range validInstructionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid instruction type %q", value)
}
