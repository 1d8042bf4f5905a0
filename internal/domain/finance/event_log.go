package finance

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
)

// EventType categorises rows of the event log
type EventType string

const (
	EventTypeSale    EventType = "sale"
	EventTypeOrder   EventType = "order"
	EventTypePayment EventType = "payment"
	EventTypeService EventType = "service"
	EventTypeStock   EventType = "stock"
	EventTypeSystem  EventType = "system"
)

// Event is an append-only log row describing a business action
type Event struct {
	shared.BaseEntity
	Date        time.Time `gorm:"not null;index"`
	EventType   EventType `gorm:"type:varchar(20);not null;index"`
	Description string    `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM
func (Event) TableName() string {
	return "event"
}

// NewEvent creates an event log row
func NewEvent(eventType EventType, description string, at time.Time) *Event {
	return &Event{
		BaseEntity:  shared.NewBaseEntity(),
		Date:        at,
		EventType:   eventType,
		Description: description,
	}
}
