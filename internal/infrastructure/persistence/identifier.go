package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentifierSequence holds the last identifier handed out for (kind, branch).
// Temporary identifiers use the nil branch and count downwards.
type IdentifierSequence struct {
	shared.BaseEntity
	Kind      shared.IdentifierKind `gorm:"type:varchar(30);not null;uniqueIndex:idx_identifier_sequence"`
	BranchID  uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_identifier_sequence"`
	LastValue int64                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IdentifierSequence) TableName() string {
	return "identifier_sequence"
}

// GormIdentifierAllocator allocates identifiers from locked sequence rows
type GormIdentifierAllocator struct {
	db *gorm.DB
}

// NewGormIdentifierAllocator creates an allocator bound to db
func NewGormIdentifierAllocator(db *gorm.DB) *GormIdentifierAllocator {
	return &GormIdentifierAllocator{db: db}
}

// Next returns the next positive identifier for (kind, branch)
func (a *GormIdentifierAllocator) Next(ctx context.Context, kind shared.IdentifierKind, branchID uuid.UUID) (int64, error) {
	return a.step(ctx, kind, branchID, 1)
}

// NextTemporary returns the next negative identifier for kind
func (a *GormIdentifierAllocator) NextTemporary(ctx context.Context, kind shared.IdentifierKind) (int64, error) {
	return a.step(ctx, kind, uuid.Nil, -1)
}

// Reallocate hands out the definitive identifier of an object created with a
// temporary one.
func (a *GormIdentifierAllocator) Reallocate(ctx context.Context, kind shared.IdentifierKind, branchID uuid.UUID, temporary int64) (int64, error) {
	if temporary >= 0 {
		return temporary, nil
	}
	return a.Next(ctx, kind, branchID)
}

func (a *GormIdentifierAllocator) step(ctx context.Context, kind shared.IdentifierKind, branchID uuid.UUID, delta int64) (int64, error) {
	var seq IdentifierSequence
	err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ? AND branch_id = ?", kind, branchID).
		First(&seq).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seq = IdentifierSequence{BaseEntity: shared.NewBaseEntity(), Kind: kind, BranchID: branchID}
		seq.LastValue = delta
		if err := a.db.WithContext(ctx).Create(&seq).Error; err != nil {
			return 0, fmt.Errorf("create identifier sequence %s: %w", kind, err)
		}
		return seq.LastValue, nil
	case err != nil:
		return 0, fmt.Errorf("lock identifier sequence %s: %w", kind, err)
	}
	seq.LastValue += delta
	if err := a.db.WithContext(ctx).Model(&seq).Update("last_value", seq.LastValue).Error; err != nil {
		return 0, fmt.Errorf("update identifier sequence %s: %w", kind, err)
	}
	return seq.LastValue, nil
}

var _ shared.IdentifierAllocator = (*GormIdentifierAllocator)(nil)
