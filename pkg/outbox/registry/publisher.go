package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/payloads"
)

// maxEnvelopeVersion is the newest envelope layout this binary can decode.
const maxEnvelopeVersion = 1

// EventDescriptor binds an order event type to its topic and payload shape.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row decoded against its descriptor.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// OrderNumber returns the storefront order number carried by the payload.
func (r *ResolvedEvent) OrderNumber() string {
	if scoped, ok := r.Payload.(payloads.OrderScoped); ok {
		return scoped.OrderRef()
	}
	return ""
}

// Attributes builds the Pub/Sub message attributes consumers filter on.
func (r *ResolvedEvent) Attributes(row models.OutboxEvent) map[string]string {
	attrs := map[string]string{
		"event_id":         r.Envelope.EventID,
		"event_type":       string(row.EventType),
		"aggregate_type":   string(row.AggregateType),
		"aggregate_id":     row.AggregateID.String(),
		"envelope_version": fmt.Sprint(r.Envelope.Version),
		"created_at":       row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if number := r.OrderNumber(); number != "" {
		attrs["order_number"] = number
	}
	return attrs
}

// EventRegistry maps each order event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that no amount of retrying will publish.
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

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// NewEventRegistry routes every order event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}
	order := func(t enums.OutboxEventType, factory func() any) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregateOrder, Topic: cfg.OrdersTopic, PayloadFactory: factory}
	}
	descriptors := []EventDescriptor{
		order(enums.EventOrderPlaced, func() any { return &payloads.OrderPlacedEvent{} }),
		order(enums.EventOrderInconsistent, func() any { return &payloads.OrderInconsistentEvent{} }),
		order(enums.EventDraftExpired, func() any { return &payloads.OrderDraftExpiredEvent{} }),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]bool{}
	var topics []string
	for _, desc := range r.entries {
		if !seen[desc.Topic] {
			seen[desc.Topic] = true
			topics = append(topics, desc.Topic)
		}
	}
	return topics
}

// Resolve validates the row against its descriptor and decodes the payload.
// Every failure is non-retryable since the row itself is malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	switch {
	case envelope.EventID == "":
		return nil, nonRetryable("envelope missing event id")
	case envelope.Version > maxEnvelopeVersion:
		return nil, nonRetryable("envelope version %d newer than supported %d", envelope.Version, maxEnvelopeVersion)
	case envelope.Type != "" && envelope.Type != event.EventType:
		return nil, nonRetryable("envelope type %s does not match row type %s", envelope.Type, event.EventType)
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
