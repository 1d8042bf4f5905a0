package persistence

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockItemRepository persists ProductStockItem rows
type GormStockItemRepository struct {
	*GormRepository[inventory.ProductStockItem]
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{
		GormRepository: NewGormRepository[inventory.ProductStockItem](db),
		db:             db,
	}
}

// FindForUpdate loads the (storable, branch, batch) row with SELECT ... FOR UPDATE
func (r *GormStockItemRepository) FindForUpdate(ctx context.Context, storableID, branchID uuid.UUID, batchID *uuid.UUID) (*inventory.ProductStockItem, error) {
	var item inventory.ProductStockItem
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("storable_id = ? AND branch_id = ?", storableID, branchID)
	if batchID == nil {
		query = query.Where("batch_id IS NULL")
	} else {
		query = query.Where("batch_id = ?", *batchID)
	}
	if err := query.First(&item).Error; err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

// FindByStorable lists the rows of a storable, optionally for one branch only
func (r *GormStockItemRepository) FindByStorable(ctx context.Context, storableID uuid.UUID, branchID *uuid.UUID) ([]inventory.ProductStockItem, error) {
	var items []inventory.ProductStockItem
	query := r.db.WithContext(ctx).Where("storable_id = ?", storableID)
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	if err := query.Order("te_created ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find stock items: %w", err)
	}
	return items, nil
}

// GormHistoryRepository appends StockTransactionHistory rows
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append inserts a history row. Rows are never updated.
func (r *GormHistoryRepository) Append(ctx context.Context, entry *inventory.StockTransactionHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append stock history: %w", err)
	}
	return nil
}

// FindFor returns the rows of (storable, branch, batch) in append order
func (r *GormHistoryRepository) FindFor(ctx context.Context, storableID, branchID uuid.UUID, batchID *uuid.UUID) ([]inventory.StockTransactionHistory, error) {
	var rows []inventory.StockTransactionHistory
	query := r.db.WithContext(ctx).Where("storable_id = ? AND branch_id = ?", storableID, branchID)
	if batchID == nil {
		query = query.Where("batch_id IS NULL")
	} else {
		query = query.Where("batch_id = ?", *batchID)
	}
	if err := query.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find stock history: %w", err)
	}
	return rows, nil
}

// FindByObject returns the rows caused by a domain object
func (r *GormHistoryRepository) FindByObject(ctx context.Context, objectID uuid.UUID) ([]inventory.StockTransactionHistory, error) {
	var rows []inventory.StockTransactionHistory
	if err := r.db.WithContext(ctx).Where("object_id = ?", objectID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find stock history by object: %w", err)
	}
	return rows, nil
}

var (
	_ inventory.StockItemRepository = (*GormStockItemRepository)(nil)
	_ inventory.HistoryRepository   = (*GormHistoryRepository)(nil)
)
