package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// DeliveryStatus represents the status of a delivery
type DeliveryStatus string

const (
	DeliveryStatusInitial   DeliveryStatus = "initial"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
	DeliveryStatusPicked    DeliveryStatus = "picked"
	DeliveryStatusPacked    DeliveryStatus = "packed"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusReceived  DeliveryStatus = "received"
)

// CanTransitionTo checks the delivery status machine. Steps may be undone one at a time.
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	switch s {
	case DeliveryStatusInitial:
		return target == DeliveryStatusPicked || target == DeliveryStatusCancelled
	case DeliveryStatusPicked:
		return target == DeliveryStatusPacked || target == DeliveryStatusInitial || target == DeliveryStatusCancelled
	case DeliveryStatusPacked:
		return target == DeliveryStatusSent || target == DeliveryStatusPicked || target == DeliveryStatusCancelled
	case DeliveryStatusSent:
		return target == DeliveryStatusReceived || target == DeliveryStatusPacked
	}
	return false
}

// Delivery ships the goods of a sale to the client
type Delivery struct {
	shared.BaseAggregateRoot
	Status        DeliveryStatus `gorm:"type:varchar(20);not null"`
	SaleID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	BranchID      uuid.UUID      `gorm:"type:uuid;not null"`
	TransporterID *uuid.UUID     `gorm:"type:uuid"`
	Address       string         `gorm:"type:text"`
	TrackingCode  string         `gorm:"type:varchar(100)"`
	PickDate      *time.Time
	PackDate      *time.Time
	SendDate      *time.Time
	ReceiveDate   *time.Time
	CancelDate    *time.Time
}

// TableName returns the table name for GORM
func (Delivery) TableName() string {
	return "delivery"
}

// NewDelivery creates a delivery for a sale
func NewDelivery(sale *Sale, address string) *Delivery {
	return &Delivery{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            DeliveryStatusInitial,
		SaleID:            sale.ID,
		BranchID:          sale.BranchID,
		TransporterID:     sale.TransporterID,
		Address:           address,
	}
}

// SetStatus moves the delivery and records the matching date
func (d *Delivery) SetStatus(target DeliveryStatus, at time.Time) error {
	if !d.Status.CanTransitionTo(target) {
		return shared.InvalidStatef("cannot move delivery %s from %s to %s", d.ID, d.Status, target)
	}
	old := d.Status
	d.Status = target
	switch target {
	case DeliveryStatusPicked:
		d.PickDate = &at
	case DeliveryStatusPacked:
		d.PackDate = &at
	case DeliveryStatusSent:
		d.SendDate = &at
	case DeliveryStatusReceived:
		d.ReceiveDate = &at
	case DeliveryStatusCancelled:
		d.CancelDate = &at
	}
	d.AddDomainEvent(NewDeliveryStatusChangedEvent(d, old))
	return nil
}
