package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a persisted row with a UUID key
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity holds the primary key and the te_created/te_modified audit
// columns present on every table
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:te_created;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:te_modified;autoUpdateTime"`
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// NewBaseEntity generates a key and stamps both audit columns
func NewBaseEntity() BaseEntity {
	return NewBaseEntityWithID(uuid.New())
}

// NewBaseEntityWithID reuses id as the key. Product, Service and Storable
// share the key of their Sellable.
func NewBaseEntityWithID(id uuid.UUID) BaseEntity {
	now := time.Now()
	return BaseEntity{ID: id, CreatedAt: now, UpdatedAt: now}
}

// AggregateRoot is an entity with a per-branch identifier that records
// events until the application layer publishes them
type AggregateRoot interface {
	Entity
	GetIdentifier() int64
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot implements AggregateRoot for embedding
type BaseAggregateRoot struct {
	BaseEntity
	// Identifier grows per (kind, branch). Synchronized installations hand
	// out negative temporary values until the identifier is reallocated.
	Identifier int64         `gorm:"index"`
	pending    []DomainEvent `gorm:"-"`
}

// NewBaseAggregateRoot creates an aggregate with a fresh key
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity()}
}

func (a *BaseAggregateRoot) GetIdentifier() int64 { return a.Identifier }

// HasTemporaryIdentifier reports whether the identifier awaits reallocation
func (a *BaseAggregateRoot) HasTemporaryIdentifier() bool {
	return a.Identifier < 0
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }
