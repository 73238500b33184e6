package enums

import "fmt"

// PaymentMethod identifies how a bag was paid.
type PaymentMethod string

const (
	PaymentMethodCardTerminal PaymentMethod = "card_terminal"
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodPixTerminal  PaymentMethod = "pix_terminal"
	PaymentMethodPaymentLink  PaymentMethod = "payment_link"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodGateway      PaymentMethod = "gateway"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCardTerminal,
	PaymentMethodPix,
	PaymentMethodPixTerminal,
	PaymentMethodPaymentLink,
	PaymentMethodCash,
	PaymentMethodBankTransfer,
	PaymentMethodGateway,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// IsManual reports whether the method requires proof review by an operator.
func (p PaymentMethod) IsManual() bool {
	return p.IsValid() && p != PaymentMethodGateway
}
