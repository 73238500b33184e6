package enums

import "fmt"

// BagStatus is the payment-side status of a bag.
type BagStatus string

const (
	BagStatusOpen            BagStatus = "open"
	BagStatusAwaitingPayment BagStatus = "awaiting_payment"
	BagStatusPaid            BagStatus = "paid"
	BagStatusCancelled       BagStatus = "cancelled"
)

var validBagStatuses = []BagStatus{
	BagStatusOpen,
	BagStatusAwaitingPayment,
	BagStatusPaid,
	BagStatusCancelled,
}

// String implements fmt.Stringer.
func (b BagStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BagStatus.
func (b BagStatus) IsValid() bool {
	for _, candidate := range validBagStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBagStatus converts raw input into a BagStatus.
func ParseBagStatus(value string) (BagStatus, error) {
	for _, candidate := range validBagStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bag status %q", value)
}

// IsUnpaid reports whether the bag still expects a payment.
func (b BagStatus) IsUnpaid() bool {
	return b == BagStatusOpen || b == BagStatusAwaitingPayment
}
