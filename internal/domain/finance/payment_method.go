package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodName identifies a payment method and its operation
type MethodName string

const (
	MethodMoney       MethodName = "money"
	MethodCheck       MethodName = "check"
	MethodBill        MethodName = "bill"
	MethodCard        MethodName = "card"
	MethodDeposit     MethodName = "deposit"
	MethodStoreCredit MethodName = "store_credit"
	MethodCredit      MethodName = "credit"
	MethodTrade       MethodName = "trade"
	MethodOnline      MethodName = "online"
	MethodMultiple    MethodName = "multiple"
)

// Operation describes how payments of a method behave
type Operation struct {
	Name        MethodName
	Description string
	// CreatesTransactions makes Pay post an AccountTransaction
	CreatesTransactions bool
	// PaysImmediately pays the payment when its sale is confirmed at a till
	PaysImmediately bool
	// CountsAsCash makes till entries of the method part of the cash amount
	CountsAsCash bool
	// CanChangeDueDate is false for methods whose dates come from a third party
	CanChangeDueDate bool
	// MaxInstallments bounds the method configuration (0 = unbounded)
	MaxInstallments int
}

var operations = map[MethodName]Operation{
	MethodMoney:       {Name: MethodMoney, Description: "Money", CreatesTransactions: true, PaysImmediately: true, CountsAsCash: true, CanChangeDueDate: true, MaxInstallments: 1},
	MethodCheck:       {Name: MethodCheck, Description: "Check", CreatesTransactions: true, CanChangeDueDate: true, MaxInstallments: 12},
	MethodBill:        {Name: MethodBill, Description: "Bill", CreatesTransactions: true, CanChangeDueDate: true, MaxInstallments: 12},
	MethodCard:        {Name: MethodCard, Description: "Card", CreatesTransactions: true, MaxInstallments: 24},
	MethodDeposit:     {Name: MethodDeposit, Description: "Deposit", CreatesTransactions: true, CanChangeDueDate: true, MaxInstallments: 12},
	MethodStoreCredit: {Name: MethodStoreCredit, Description: "Store credit", CreatesTransactions: true, CanChangeDueDate: true, MaxInstallments: 12},
	MethodCredit:      {Name: MethodCredit, Description: "Credit", CanChangeDueDate: true, MaxInstallments: 1},
	MethodTrade:       {Name: MethodTrade, Description: "Trade", MaxInstallments: 1},
	MethodOnline:      {Name: MethodOnline, Description: "Online", CreatesTransactions: true, MaxInstallments: 1},
	MethodMultiple:    {Name: MethodMultiple, Description: "Multiple"},
}

// IsValid checks if the name has a registered operation
func (n MethodName) IsValid() bool {
	_, ok := operations[n]
	return ok
}

// OperationFor returns the operation of a method name
func OperationFor(name MethodName) (Operation, error) {
	op, ok := operations[name]
	if !ok {
		return Operation{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown payment method %q", name))
	}
	return op, nil
}

// MethodNames lists the registered methods in name order
func MethodNames() []MethodName {
	names := make([]MethodName, 0, len(operations))
	for n := range operations {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// PaymentMethod is the policy applied to payments of one kind
type PaymentMethod struct {
	shared.BaseEntity
	MethodName      MethodName `gorm:"type:varchar(20);not null;uniqueIndex"`
	IsActive        bool
	MaxInstallments int `gorm:"not null"`
	// DailyInterest is the percentage charged per day late
	DailyInterest decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// Penalty is the percentage of the value charged once when late
	Penalty              decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	DestinationAccountID *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentMethod) TableName() string {
	return "payment_method"
}

// NewPaymentMethod creates an active method with its operation defaults
func NewPaymentMethod(name MethodName) (*PaymentMethod, error) {
	op, err := OperationFor(name)
	if err != nil {
		return nil, err
	}
	return &PaymentMethod{
		BaseEntity:      shared.NewBaseEntity(),
		MethodName:      name,
		IsActive:        true,
		MaxInstallments: op.MaxInstallments,
		DailyInterest:   decimal.Zero,
		Penalty:         decimal.Zero,
	}, nil
}

// Operation returns the operation of the method. Unknown names fall back to a
// passive operation.
func (m *PaymentMethod) Operation() Operation {
	op, ok := operations[m.MethodName]
	if !ok {
		return Operation{Name: m.MethodName}
	}
	return op
}

// IsMoney reports the money method
func (m *PaymentMethod) IsMoney() bool {
	return m.MethodName == MethodMoney
}

// SetRates updates the interest and penalty percentages
func (m *PaymentMethod) SetRates(dailyInterest, penalty decimal.Decimal) error {
	hundred := decimal.NewFromInt(100)
	if dailyInterest.IsNegative() || dailyInterest.GreaterThan(hundred) {
		return shared.OutOfRangef("daily interest must be within [0, 100]: %s", dailyInterest)
	}
	if penalty.IsNegative() || penalty.GreaterThan(hundred) {
		return shared.OutOfRangef("penalty must be within [0, 100]: %s", penalty)
	}
	m.DailyInterest = dailyInterest
	m.Penalty = penalty
	return nil
}

// CheckInstallments validates creating one more payment given how many
// payments of this method the group already holds in the capped direction.
func (m *PaymentMethod) CheckInstallments(existing int) error {
	if m.MaxInstallments <= 0 || existing < m.MaxInstallments {
		return nil
	}
	if existing == m.MaxInstallments {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("You can not create more inpayments for this payment group since the maximum allowed for this payment method is %d", m.MaxInstallments))
	}
	return shared.Inconsistencyf("there are more inpayments (%d) than the maximum allowed for the %s method (%d)",
		existing, m.MethodName, m.MaxInstallments)
}

// RepeatType is the interval of repeated payments
type RepeatType string

const (
	RepeatDaily     RepeatType = "daily"
	RepeatWeekly    RepeatType = "weekly"
	RepeatBiweekly  RepeatType = "biweekly"
	RepeatMonthly   RepeatType = "monthly"
	RepeatQuarterly RepeatType = "quarterly"
	RepeatYearly    RepeatType = "yearly"
)

// RepeatDates returns the due dates from start up to end inclusive.
// Monthly based intervals keep the start day, clamped to the last day of
// shorter months.
func RepeatDates(repeat RepeatType, start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, shared.OutOfRangef("end date %s is before start date %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	var step func(i int) time.Time
	switch repeat {
	case RepeatDaily:
		step = func(i int) time.Time { return start.AddDate(0, 0, i) }
	case RepeatWeekly:
		step = func(i int) time.Time { return start.AddDate(0, 0, 7*i) }
	case RepeatBiweekly:
		step = func(i int) time.Time { return start.AddDate(0, 0, 14*i) }
	case RepeatMonthly:
		step = func(i int) time.Time { return addMonthsClamped(start, i) }
	case RepeatQuarterly:
		step = func(i int) time.Time { return addMonthsClamped(start, 3*i) }
	case RepeatYearly:
		step = func(i int) time.Time { return addMonthsClamped(start, 12*i) }
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid repeat type %q", repeat))
	}
	var dates []time.Time
	for i := 0; ; i++ {
		d := step(i)
		if d.After(end) {
			break
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
