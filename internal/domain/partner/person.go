// Package partner models people and the roles they play.
//
// A Person carries only contact data. Each role (client, supplier, branch, ...)
// is a separate facet row pointing back at the person, with its own lifecycle.
package partner

import (
	"context"
	"strings"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// Person is the common identity behind every facet
type Person struct {
	shared.BaseEntity
	Name   string `gorm:"type:varchar(200);not null;index"`
	Phone  string `gorm:"type:varchar(50)"`
	Mobile string `gorm:"type:varchar(50)"`
	Email  string `gorm:"type:varchar(200)"`
	Notes  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Person) TableName() string {
	return "person"
}

// NewPerson creates a person
func NewPerson(name string) (*Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Person name cannot be empty")
	}
	return &Person{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
	}, nil
}

// Facet is implemented by every role record
type Facet interface {
	GetPersonID() uuid.UUID
}

// PersonRef links a facet to its person
type PersonRef struct {
	PersonID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
}

// GetPersonID returns the person the facet belongs to
func (r PersonRef) GetPersonID() uuid.UUID {
	return r.PersonID
}

// FindFacet returns the facet of personID or nil when the person does not play
// that role. More than one facet row for the same person is reported as a
// database inconsistency.
func FindFacet[T any](ctx context.Context, repo shared.Repository[T], personID uuid.UUID) (*T, error) {
	rows, err := repo.FindAll(ctx, shared.Where("person_id", personID))
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, shared.Inconsistencyf("person %s has %d facet rows where one is expected", personID, len(rows))
	}
}
