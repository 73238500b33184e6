package delivery

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

// IsDeliveryConfigured reports whether shipping matches the rule for method:
// pickup ships free, courier charges exactly the flat fee and carrier needs a
// positive quoted amount.
func IsDeliveryConfigured(method enums.DeliveryMethod, shipping, courierFee decimal.Decimal) bool {
	switch method {
	case enums.DeliveryPickup:
		return shipping.IsZero()
	case enums.DeliveryCourier:
		return shipping.Equal(courierFee)
	case enums.DeliveryCarrier:
		return shipping.IsPositive()
	default:
		return false
	}
}

// Gate blocks payment confirmation until delivery terms are locked.
type Gate struct {
	courierFee decimal.Decimal
}

func NewGate(courierFee decimal.Decimal) Gate {
	return Gate{courierFee: courierFee}
}

func (g Gate) CourierFee() decimal.Decimal {
	return g.courierFee
}

func (g Gate) IsConfigured(method enums.DeliveryMethod, shipping decimal.Decimal) bool {
	return IsDeliveryConfigured(method, shipping, g.courierFee)
}

// Check returns PRECONDITION_FAILED naming the unmet rule.
func (g Gate) Check(method enums.DeliveryMethod, shipping decimal.Decimal) error {
	if g.IsConfigured(method, shipping) {
		return nil
	}

	var rule string
	switch method {
	case enums.DeliveryPickup:
		rule = "pickup requires shipping 0.00"
	case enums.DeliveryCourier:
		rule = fmt.Sprintf("courier requires shipping %s", g.courierFee.StringFixed(2))
	case enums.DeliveryCarrier:
		rule = "carrier requires a shipping amount greater than 0"
	default:
		rule = "delivery method must be confirmed"
	}

	methodLabel := string(method)
	if methodLabel == "" {
		methodLabel = "unset"
	}
	return pkgerrors.New(pkgerrors.CodePreconditionFailed, "delivery not configured: "+rule).WithDetails(map[string]any{
		"reason":          "DELIVERY_NOT_CONFIGURED",
		"delivery_method": methodLabel,
		"shipping_amount": shipping.StringFixed(2),
		"rule":            rule,
	})
}
