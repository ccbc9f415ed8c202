package enums

import "fmt"

// InstructionStatus tracks settlement of a ledger instruction.
type InstructionStatus string

const (
	InstructionStatusPending   InstructionStatus = "pending"
	InstructionStatusExecuted  InstructionStatus = "executed"
	InstructionStatusCancelled InstructionStatus = "cancelled"
)

var validInstructionStatuses = []InstructionStatus{
	InstructionStatusPending,
	InstructionStatusExecuted,
	InstructionStatusCancelled,
}

// String implements fmt.Stringer.
func (s InstructionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InstructionStatus.
func (s InstructionStatus) IsValid() bool {
	for _, candidate := range validInstructionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInstructionStatus converts raw input into an InstructionStatus.
func ParseInstructionStatus(value string) (InstructionStatus, error) {
	for _, candidate := range validInstructionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid instruction status %q", value)
}
