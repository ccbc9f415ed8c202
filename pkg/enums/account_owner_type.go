package enums

import "fmt"

// AccountOwnerType tags who owns a ledger account. The platform account has
// no owning party; traveler and host accounts reference a user row.
type AccountOwnerType string

const (
	AccountOwnerTraveler AccountOwnerType = "traveler"
	AccountOwnerHost     AccountOwnerType = "host"
	AccountOwnerPlatform AccountOwnerType = "platform"
)

var validAccountOwnerTypes = []AccountOwnerType{
	AccountOwnerTraveler,
	AccountOwnerHost,
	AccountOwnerPlatform,
}

// String implements fmt.Stringer.
func (t AccountOwnerType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AccountOwnerType.
func (t AccountOwnerType) IsValid() bool {
	for _, candidate := range validAccountOwnerTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAccountOwnerType converts raw input into an AccountOwnerType.
func ParseAccountOwnerType(value string) (AccountOwnerType, error) {
	for _, candidate := range validAccountOwnerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account owner type %q", value)
}
