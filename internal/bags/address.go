package bags

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Operational states in which a paid bag may still have its address changed:
// nothing has been sent to the aggregator yet.
var addressEditable = map[enums.OperationalStatus]bool{
	enums.OperationalPaid:            true,
	enums.OperationalPrepareShipment: true,
	enums.OperationalMissingData:     true,
}

// UpdateShippingAddress replaces the address snapshot without touching the
// locked delivery terms. A missing_data bag whose new address is complete
// goes back to prepare_shipment so the label can be generated.
func (s *Service) UpdateShippingAddress(ctx context.Context, bagID uuid.UUID, addr types.ShippingAddress, actor Actor) (*models.Bag, error) {
	bag, err := s.mutate(ctx, "update_address", bagID, actor, func(_ Repository, bag *models.Bag, _ time.Time) (*mutation, error) {
		if err := checkAddressEditable(bag); err != nil {
			return nil, err
		}

		normalized := addr.Normalized()
		bag.ShippingAddress = &normalized
		missing := shipping.MissingFields(bag.ShippingAddress)
		updates := map[string]any{"shipping_address": bag.ShippingAddress}

		notes := ""
		if bag.OperationalStatus == enums.OperationalMissingData && len(missing) == 0 {
			bag.OperationalStatus = enums.OperationalPrepareShipment
			updates["operational_status"] = bag.OperationalStatus
			notes = "shipping address completed"
		}

		return &mutation{
			updates: updates,
			notes:   notes,
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagAddressUpdated, bag.ID, actor.ref(), payloads.BagAddressUpdatedEvent{
					BagID:             bag.ID,
					MissingFields:     missing,
					OperationalStatus: bag.OperationalStatus,
				}),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.syncCustomerAddress(ctx, bag)
	return bag, nil
}

func checkAddressEditable(bag *models.Bag) error {
	switch {
	case bag.Status == enums.BagStatusCancelled:
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "cannot change the address of a cancelled bag")
	case bag.ShipmentRef() != "" || bag.HasLabel():
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "address is locked once a shipment exists").
			WithDetails(map[string]any{"shipment_id": bag.ShipmentRef()})
	case bag.Status == enums.BagStatusPaid && !addressEditable[bag.OperationalStatus]:
		return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot change the address of a %s bag", bag.OperationalStatus).
			WithDetails(map[string]any{"operational_status": bag.OperationalStatus})
	}
	return nil
}
