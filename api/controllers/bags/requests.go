package bags

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/types"
)

type assignHandlerRequest struct {
	HandlerID *string `json:"handler_id" validate:"omitempty,uuid"`
}

type confirmDeliveryRequest struct {
	Method      string                 `json:"method" validate:"required,oneof=pickup courier carrier"`
	Shipping    decimal.Decimal        `json:"shipping_amount" validate:"money"`
	ServiceName string                 `json:"service_name" validate:"max=120"`
	Address     *types.ShippingAddress `json:"shipping_address"`
}

type updateAddressRequest struct {
	Address *types.ShippingAddress `json:"shipping_address" validate:"required"`
}

type confirmPaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

type submitPaymentRequest struct {
	Method   string `json:"method" validate:"required"`
	ProofURL string `json:"proof_url" validate:"omitempty,url,max=2048"`
	Notes    string `json:"notes" validate:"max=1000"`
}

type rejectPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type revalidatePaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required,max=64"`
}

type recordChargeRequest struct {
	Channel              string `json:"channel" validate:"required"`
	MoveToAwaitingReturn bool   `json:"move_to_awaiting_return"`
}

type revertStatusRequest struct {
	Target string `json:"target" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}
