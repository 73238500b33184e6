package enums

import "fmt"

// PaymentReviewStatus tracks operator review of a manually submitted payment proof.
type PaymentReviewStatus string

const (
	PaymentReviewNone     PaymentReviewStatus = "none"
	PaymentReviewPending  PaymentReviewStatus = "pending_review"
	PaymentReviewApproved PaymentReviewStatus = "approved"
	PaymentReviewRejected PaymentReviewStatus = "rejected"
)

var validPaymentReviewStatuses = []PaymentReviewStatus{
	PaymentReviewNone,
	PaymentReviewPending,
	PaymentReviewApproved,
	PaymentReviewRejected,
}

// String implements fmt.Stringer.
func (p PaymentReviewStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentReviewStatus.
func (p PaymentReviewStatus) IsValid() bool {
	for _, candidate := range validPaymentReviewStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentReviewStatus converts raw input into a PaymentReviewStatus.
func ParsePaymentReviewStatus(value string) (PaymentReviewStatus, error) {
	for _, candidate := range validPaymentReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment review status %q", value)
}
