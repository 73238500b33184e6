package shipping

import (
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

var insufficientBalanceMarkers = []string{"saldo", "insuficiente", "carteira"}

// IsInsufficientBalance classifies a checkout failure body as an empty wallet
// by its Portuguese wording. Prefer walletEmpty, which checks the status first.
func IsInsufficientBalance(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range insufficientBalanceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// walletEmpty reports whether a checkout error means the aggregator wallet
// cannot pay for the label. A 402 is taken at face value; otherwise only a
// 4xx whose body carries the balance wording qualifies, so a 5xx outage that
// happens to mention the wallet stays a hard failure.
func walletEmpty(err error) bool {
	status := 0
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			status, _ = details["status"].(int)
		}
	}
	switch {
	case status == http.StatusPaymentRequired:
		return true
	case status >= 500:
		return false
	default:
		return IsInsufficientBalance(failureText(err))
	}
}
