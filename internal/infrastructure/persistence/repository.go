package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository implements shared.Repository for any gorm mapped entity
type GormRepository[T any] struct {
	db *gorm.DB
}

// NewGormRepository creates a repository bound to db (usually a transaction)
func NewGormRepository[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

// FindByID finds an entity by its ID
func (r *GormRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &entity, nil
}

// FindOne returns the first entity matching filter
func (r *GormRepository[T]) FindOne(ctx context.Context, filter shared.Filter) (*T, error) {
	var entity T
	if err := applyFilter(r.db.WithContext(ctx), filter).First(&entity).Error; err != nil {
		return nil, translateError(err)
	}
	return &entity, nil
}

// FindAll returns every entity matching filter
func (r *GormRepository[T]) FindAll(ctx context.Context, filter shared.Filter) ([]T, error) {
	var entities []T
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	return entities, nil
}

// Count counts the entities matching filter
func (r *GormRepository[T]) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(new(T))
	if len(filter.Filters) > 0 {
		query = query.Where(filter.Filters)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Save inserts or updates the entity
func (r *GormRepository[T]) Save(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Delete removes the entity with id
func (r *GormRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies equality conditions, ordering and limit. Rows are
// returned in creation order unless the filter orders them.
func applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if len(filter.Filters) > 0 {
		query = query.Where(filter.Filters)
	}
	column := filter.OrderBy
	if column == "" {
		column = "te_created"
	}
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   descending(filter.OrderDir),
	})
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

// descending accepts "desc" in any case; everything else sorts ascending
func descending(dir string) bool {
	return strings.EqualFold(strings.TrimSpace(dir), "desc")
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

var _ shared.Repository[struct{}] = (*GormRepository[struct{}])(nil)
