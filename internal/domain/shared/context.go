package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Parameters is a read-only view over business parameters
type Parameters interface {
	Bool(name string) bool
	Int(name string) int
	Decimal(name string) decimal.Decimal
	String(name string) string
}

// Context carries who is operating, where, and with which parameters. It is
// handed to every lifecycle operation in place of process globals.
type Context struct {
	BranchID  uuid.UUID
	UserID    uuid.UUID
	StationID uuid.UUID
	Params    Parameters
	Clock     func() time.Time
}

// Now returns the current instant according to the context clock
func (c Context) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Today returns the current date truncated to midnight in the clock's location
func (c Context) Today() time.Time {
	return StartOfDay(c.Now())
}

// WithBranch returns a copy of the context operating on another branch
func (c Context) WithBranch(branchID uuid.UUID) Context {
	c.BranchID = branchID
	return c
}

// StartOfDay truncates t to midnight keeping its location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
