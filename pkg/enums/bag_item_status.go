package enums

import "fmt"

// BagItemStatus is the reservation state of a claimed item.
type BagItemStatus string

const (
	BagItemReserved  BagItemStatus = "reserved"
	BagItemConfirmed BagItemStatus = "confirmed"
	BagItemExpired   BagItemStatus = "expired"
	BagItemCancelled BagItemStatus = "cancelled"
	BagItemRemoved   BagItemStatus = "removed"
)

var validBagItemStatuses = []BagItemStatus{
	BagItemReserved,
	BagItemConfirmed,
	BagItemExpired,
	BagItemCancelled,
	BagItemRemoved,
}

// String implements fmt.Stringer.
func (b BagItemStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BagItemStatus.
func (b BagItemStatus) IsValid() bool {
	for _, candidate := range validBagItemStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBagItemStatus converts raw input into a BagItemStatus.
func ParseBagItemStatus(value string) (BagItemStatus, error) {
	for _, candidate := range validBagItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bag item status %q", value)
}

// IsShippable reports whether the item counts toward the shipped package.
func (b BagItemStatus) IsShippable() bool {
	return b == BagItemReserved || b == BagItemConfirmed || b == BagItemExpired
}
