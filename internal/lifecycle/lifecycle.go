package lifecycle

import (
	"fmt"
	"sort"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

type state = enums.OperationalStatus

// prePayment edges hold for every delivery method, including none.
var prePayment = map[state][]state{
	enums.OperationalAwaitingPayment: {enums.OperationalAwaitingReturn, enums.OperationalPaid},
	enums.OperationalAwaitingReturn:  {enums.OperationalAwaitingPayment, enums.OperationalPaid},
}

var byMethod = map[enums.DeliveryMethod]map[state][]state{
	enums.DeliveryCarrier: {
		enums.OperationalPaid: {enums.OperationalPrepareShipment},
		enums.OperationalPrepareShipment: {
			enums.OperationalLabelGenerated,
			enums.OperationalMissingData,
			enums.OperationalAwaitingShippingPayment,
		},
		enums.OperationalMissingData: {
			enums.OperationalPrepareShipment,
			enums.OperationalLabelGenerated,
			enums.OperationalAwaitingShippingPayment,
		},
		enums.OperationalAwaitingShippingPayment: {
			enums.OperationalPrepareShipment,
			enums.OperationalLabelGenerated,
			enums.OperationalMissingData,
		},
		enums.OperationalLabelGenerated: {enums.OperationalPosted},
		enums.OperationalPosted:         {enums.OperationalDelivered},
	},
	enums.DeliveryCourier: {
		enums.OperationalPaid:      {enums.OperationalInTransit},
		enums.OperationalInTransit: {enums.OperationalDelivered},
	},
	enums.DeliveryPickup: {
		enums.OperationalPaid:           {enums.OperationalAwaitingPickup},
		enums.OperationalAwaitingPickup: {enums.OperationalPickedUp},
	},
}

// NextStates lists every forward target reachable from current.
func NextStates(current state, method enums.DeliveryMethod) []state {
	if targets, ok := prePayment[current]; ok {
		return append([]state(nil), targets...)
	}
	return append([]state(nil), byMethod[method][current]...)
}

// CanTransition reports whether current -> target is a forward edge.
func CanTransition(current, target state, method enums.DeliveryMethod) bool {
	for _, candidate := range NextStates(current, method) {
		if candidate == target {
			return true
		}
	}
	return false
}

// NextState returns the single target of a generic advance. Payment
// confirmation, label purchase and the carrier side states are driven by
// their own operations and are never reachable here.
func NextState(current state, method enums.DeliveryMethod) (state, bool) {
	if current.IsPrePayment() || isSideState(current) {
		return "", false
	}
	var found []state
	for _, target := range NextStates(current, method) {
		if target == enums.OperationalLabelGenerated || isSideState(target) {
			continue
		}
		found = append(found, target)
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// PreviousStates lists the allowed revert targets for current: the inverse of
// the forward table, never landing on a carrier side state.
func PreviousStates(current state, method enums.DeliveryMethod) []state {
	var out []state
	seen := map[state]bool{}
	add := func(s state) {
		if !seen[s] && !isSideState(s) {
			seen[s] = true
			out = append(out, s)
		}
	}
	for from, targets := range prePayment {
		if contains(targets, current) {
			add(from)
		}
	}
	for from, targets := range byMethod[method] {
		if contains(targets, current) {
			add(from)
		}
	}
	sortByPipeline(out)
	return out
}

// CanRevert reports whether target is an allowed revert destination.
func CanRevert(current, target state, method enums.DeliveryMethod) bool {
	return contains(PreviousStates(current, method), target)
}

// InvalidTransition builds the PRECONDITION_FAILED error for a rejected edge.
func InvalidTransition(current, target state, method enums.DeliveryMethod) *pkgerrors.Error {
	methodLabel := string(method)
	if methodLabel == "" {
		methodLabel = "unset"
	}
	return pkgerrors.New(
		pkgerrors.CodePreconditionFailed,
		fmt.Sprintf("transition %s -> %s not allowed for delivery method %s", current, target, methodLabel),
	).WithDetails(map[string]any{
		"reason":          "invalid_transition",
		"current_status":  current,
		"target_status":   target,
		"delivery_method": methodLabel,
	})
}

// Validate returns InvalidTransition when current -> target is not a forward edge.
func Validate(current, target state, method enums.DeliveryMethod) error {
	if CanTransition(current, target, method) {
		return nil
	}
	return InvalidTransition(current, target, method)
}

func isSideState(s state) bool {
	return s == enums.OperationalMissingData || s == enums.OperationalAwaitingShippingPayment
}

func contains(list []state, s state) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

var pipelineOrder = map[state]int{
	enums.OperationalAwaitingPayment:         0,
	enums.OperationalAwaitingReturn:          1,
	enums.OperationalPaid:                    2,
	enums.OperationalPrepareShipment:         3,
	enums.OperationalMissingData:             4,
	enums.OperationalAwaitingShippingPayment: 5,
	enums.OperationalLabelGenerated:          6,
	enums.OperationalPosted:                  7,
	enums.OperationalInTransit:               8,
	enums.OperationalAwaitingPickup:          9,
	enums.OperationalDelivered:               10,
	enums.OperationalPickedUp:                11,
}

func sortByPipeline(list []state) {
	sort.SliceStable(list, func(i, j int) bool {
		return pipelineOrder[list[i]] < pipelineOrder[list[j]]
	})
}
