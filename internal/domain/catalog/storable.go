package catalog

import (
	"strings"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Storable is the stock policy of a product. Its ID is the product ID.
type Storable struct {
	shared.BaseEntity
	// IsBatch requires every stock movement to name a StorableBatch
	IsBatch         bool
	MinimumQuantity decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	MaximumQuantity decimal.Decimal `gorm:"type:decimal(20,3);not null"`
}

// TableName returns the table name for GORM
func (Storable) TableName() string {
	return "storable"
}

// NewStorable creates the stock policy of product
func NewStorable(product *Product, isBatch bool) *Storable {
	return &Storable{
		BaseEntity:      shared.NewBaseEntityWithID(product.ID),
		IsBatch:         isBatch,
		MinimumQuantity: decimal.Zero,
		MaximumQuantity: decimal.Zero,
	}
}

// SetThresholds configures the minimum/maximum quantities. A zero maximum means unbounded.
func (s *Storable) SetThresholds(minimum, maximum decimal.Decimal) error {
	if minimum.IsNegative() || maximum.IsNegative() {
		return shared.OutOfRangef("stock thresholds cannot be negative")
	}
	if !maximum.IsZero() && maximum.LessThan(minimum) {
		return shared.OutOfRangef("maximum quantity %s is below minimum %s", maximum, minimum)
	}
	s.MinimumQuantity = minimum
	s.MaximumQuantity = maximum
	return nil
}

// ValidateBatch checks the batch requirement for a movement
func (s *Storable) ValidateBatch(batchID *uuid.UUID) error {
	if s.IsBatch && batchID == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "a batch is required for this storable")
	}
	if !s.IsBatch && batchID != nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "this storable is not batch controlled")
	}
	return nil
}

// StorableBatch is a distinct lot of a batch controlled storable
type StorableBatch struct {
	shared.BaseEntity
	StorableID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_storable_batch_number,priority:1"`
	BatchNumber    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_storable_batch_number,priority:2"`
	ExpirationDate *time.Time
	Notes          string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StorableBatch) TableName() string {
	return "storable_batch"
}

// NewStorableBatch creates a lot for storable
func NewStorableBatch(storable *Storable, number string) (*StorableBatch, error) {
	if !storable.IsBatch {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "storable is not batch controlled")
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_BATCH_NUMBER", "Batch number cannot be empty")
	}
	return &StorableBatch{
		BaseEntity:  shared.NewBaseEntity(),
		StorableID:  storable.ID,
		BatchNumber: number,
	}, nil
}

// IsExpired reports whether the batch expired before today
func (b *StorableBatch) IsExpired(today time.Time) bool {
	return b.ExpirationDate != nil && b.ExpirationDate.Before(shared.StartOfDay(today))
}
