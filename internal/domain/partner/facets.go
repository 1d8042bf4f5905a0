package partner

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Individual is a natural person facet
type Individual struct {
	shared.BaseEntity
	PersonRef
	CPF       string `gorm:"type:varchar(20);index"`
	BirthDate *time.Time
}

// TableName returns the table name for GORM
func (Individual) TableName() string { return "individual" }

// Company is a legal entity facet
type Company struct {
	shared.BaseEntity
	PersonRef
	CNPJ      string `gorm:"type:varchar(20);index"`
	FancyName string `gorm:"type:varchar(200)"`
	StateReg  string `gorm:"type:varchar(30)"`
}

// TableName returns the table name for GORM
func (Company) TableName() string { return "company" }

// ClientStatus is the credit standing of a client
type ClientStatus string

const (
	ClientStatusSolvent   ClientStatus = "solvent"
	ClientStatusIndebted  ClientStatus = "indebted"
	ClientStatusInsolvent ClientStatus = "insolvent"
	ClientStatusInactive  ClientStatus = "inactive"
)

// Client is the buyer facet
type Client struct {
	shared.BaseEntity
	PersonRef
	Status      ClientStatus    `gorm:"type:varchar(20);not null"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// CreditBalance is money owed to the client (returns converted into credit)
	CreditBalance decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	DaysLate      int
}

// TableName returns the table name for GORM
func (Client) TableName() string { return "client" }

// NewClient creates a solvent client facet
func NewClient(personID uuid.UUID) *Client {
	return &Client{
		BaseEntity:    shared.NewBaseEntity(),
		PersonRef:     PersonRef{PersonID: personID},
		Status:        ClientStatusSolvent,
		CreditLimit:   decimal.Zero,
		CreditBalance: decimal.Zero,
	}
}

// IsActive reports whether the client may place orders
func (c *Client) IsActive() bool {
	return c.Status == ClientStatusSolvent
}

// CanPurchase checks a store credit amount against the client's credit limit given
// what is already open on store credit.
func (c *Client) CanPurchase(amount, alreadyOpen decimal.Decimal) bool {
	return alreadyOpen.Add(amount).LessThanOrEqual(c.CreditLimit)
}

// SupplierStatus is the state of a supplier facet
type SupplierStatus string

const (
	SupplierStatusActive   SupplierStatus = "active"
	SupplierStatusInactive SupplierStatus = "inactive"
	SupplierStatusBlocked  SupplierStatus = "blocked"
)

// Supplier is the vendor facet
type Supplier struct {
	shared.BaseEntity
	PersonRef
	Status      SupplierStatus `gorm:"type:varchar(20);not null"`
	ProductDesc string         `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Supplier) TableName() string { return "supplier" }

// NewSupplier creates an active supplier facet
func NewSupplier(personID uuid.UUID) *Supplier {
	return &Supplier{
		BaseEntity: shared.NewBaseEntity(),
		PersonRef:  PersonRef{PersonID: personID},
		Status:     SupplierStatusActive,
	}
}

// Employee is the staff facet
type Employee struct {
	shared.BaseEntity
	PersonRef
	Role         string `gorm:"type:varchar(100)"`
	IsActive     bool
	RegisterCode string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (Employee) TableName() string { return "employee" }

// LoginUser is the facet of people allowed to operate the system
type LoginUser struct {
	shared.BaseEntity
	PersonRef
	Username     string `gorm:"type:varchar(100);not null;uniqueIndex"`
	PasswordHash string `gorm:"type:varchar(100)"`
	IsActive     bool
}

// TableName returns the table name for GORM
func (LoginUser) TableName() string { return "login_user" }

// NewLoginUser creates an active login user with the given password
func NewLoginUser(personID uuid.UUID, username, password string) (*LoginUser, error) {
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	u := &LoginUser{
		BaseEntity: shared.NewBaseEntity(),
		PersonRef:  PersonRef{PersonID: personID},
		Username:   username,
		IsActive:   true,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword stores a bcrypt hash of password
func (u *LoginUser) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return shared.NewDomainError("INVALID_PASSWORD", err.Error())
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash
func (u *LoginUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Branch is the facet of a site that holds stock and issues documents
type Branch struct {
	shared.BaseEntity
	PersonRef
	Acronym   string     `gorm:"type:varchar(20);index"`
	ManagerID *uuid.UUID `gorm:"type:uuid"`
	IsActive  bool
	CRT       int
}

// TableName returns the table name for GORM
func (Branch) TableName() string { return "branch" }

// NewBranch creates an active branch facet
func NewBranch(personID uuid.UUID, acronym string) *Branch {
	return &Branch{
		BaseEntity: shared.NewBaseEntity(),
		PersonRef:  PersonRef{PersonID: personID},
		Acronym:    acronym,
		IsActive:   true,
	}
}

// SalesPerson is the seller facet
type SalesPerson struct {
	shared.BaseEntity
	PersonRef
	// CommissionFactor multiplies the commission source rates (1 = 100%)
	CommissionFactor decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	IsActive         bool
}

// TableName returns the table name for GORM
func (SalesPerson) TableName() string { return "sales_person" }

// NewSalesPerson creates an active salesperson with a neutral commission profile
func NewSalesPerson(personID uuid.UUID) *SalesPerson {
	return &SalesPerson{
		BaseEntity:       shared.NewBaseEntity(),
		PersonRef:        PersonRef{PersonID: personID},
		CommissionFactor: decimal.NewFromInt(1),
		IsActive:         true,
	}
}

// Transporter is the carrier facet
type Transporter struct {
	shared.BaseEntity
	PersonRef
	FreightPercentage decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsActive          bool
}

// TableName returns the table name for GORM
func (Transporter) TableName() string { return "transporter" }

// CreditProviderType distinguishes card networks from financing companies
type CreditProviderType string

const (
	CreditProviderCard    CreditProviderType = "card"
	CreditProviderFinance CreditProviderType = "finance"
)

// CreditProvider is the facet of card operators
type CreditProvider struct {
	shared.BaseEntity
	PersonRef
	ShortName       string             `gorm:"type:varchar(50)"`
	ProviderType    CreditProviderType `gorm:"type:varchar(20)"`
	MaxInstallments int
	PaymentDay      int
	ClosingDay      int
	IsActive        bool
}

// TableName returns the table name for GORM
func (CreditProvider) TableName() string { return "credit_provider" }
