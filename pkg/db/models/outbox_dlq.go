package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// OutboxDLQ holds an event the publisher gave up on. EventID points at the
// outbox row, which retention may already have removed.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"type:uuid;not null;index"`
	AggregateType enums.OutboxAggregateType  `gorm:"type:varchar(32);not null"`
	AggregateID   uuid.UUID                  `gorm:"type:uuid;not null"`
	EventType     enums.OutboxEventType      `gorm:"type:varchar(64);not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"type:varchar(32);not null"`
	ErrorMessage  *string
	AttemptCount  int       `gorm:"not null;default:0"`
	FailedAt      time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// Requeue rebuilds a fresh outbox row under the original event id.
func (d OutboxDLQ) Requeue() OutboxEvent {
	return OutboxEvent{
		ID:            d.EventID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       d.Payload,
	}
}
