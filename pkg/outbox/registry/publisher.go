package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the publisher should dead-letter a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes bag lifecycle events to the bags topic and the
// events that need a human nudge to the notification topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BagsTopic == "" {
		return nil, fmt.Errorf("bags topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	bag := func(eventType enums.OutboxEventType, topic string, factory func() any) {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateBag,
			Topic:          topic,
			PayloadFactory: factory,
		})
	}

	bags := cfg.BagsTopic
	bag(enums.EventBagHandlerAssigned, bags, func() any { return &payloads.BagHandlerAssignedEvent{} })
	bag(enums.EventBagDeliveryConfirmed, bags, func() any { return &payloads.BagDeliveryConfirmedEvent{} })
	bag(enums.EventBagAddressUpdated, bags, func() any { return &payloads.BagAddressUpdatedEvent{} })
	bag(enums.EventBagPaymentApproved, bags, func() any { return &payloads.BagPaymentReviewedEvent{} })
	bag(enums.EventBagPaymentRejected, bags, func() any { return &payloads.BagPaymentReviewedEvent{} })
	bag(enums.EventBagPaid, bags, func() any { return &payloads.BagPaidEvent{} })
	bag(enums.EventBagLabelGenerated, bags, func() any { return &payloads.BagLabelGeneratedEvent{} })
	bag(enums.EventBagTrackingSynced, bags, func() any { return &payloads.BagTrackingSyncedEvent{} })
	bag(enums.EventBagChargeRecorded, bags, func() any { return &payloads.BagChargeRecordedEvent{} })
	bag(enums.EventBagStatusAdvanced, bags, func() any { return &payloads.BagStatusChangedEvent{} })
	bag(enums.EventBagStatusReverted, bags, func() any { return &payloads.BagStatusChangedEvent{} })

	notify := cfg.NotificationTopic
	bag(enums.EventBagPaymentSubmitted, notify, func() any { return &payloads.BagPaymentSubmittedEvent{} })
	bag(enums.EventBagShippingPaymentRequired, notify, func() any { return &payloads.BagShippingPaymentRequiredEvent{} })
	bag(enums.EventBagChargeDue, notify, func() any { return &payloads.BagChargeDueEvent{} })

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Descriptor returns the registered descriptor for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
