package shared

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the base interface for all repositories.
// Implementations are bound to the transaction of the store that created them.
type Repository[T any] interface {
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	// FindOne returns ErrNotFound when no row matches
	FindOne(ctx context.Context, filter Filter) (*T, error)
	FindAll(ctx context.Context, filter Filter) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Save(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Filter represents query filter options. Filters are column equality
// conditions; a nil value matches NULL.
type Filter struct {
	Filters  map[string]interface{}
	OrderBy  string
	OrderDir string
	Limit    int
}

// Where builds a filter from alternating column/value pairs
func Where(pairs ...interface{}) Filter {
	f := Filter{Filters: make(map[string]interface{}, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		f.Filters[key] = pairs[i+1]
	}
	return f
}

// OrderedBy returns a copy of the filter sorted by column (ascending unless dir is "desc")
func (f Filter) OrderedBy(column, dir string) Filter {
	f.OrderBy = column
	f.OrderDir = dir
	return f
}

// First returns a copy of the filter limited to n rows
func (f Filter) First(n int) Filter {
	f.Limit = n
	return f
}
