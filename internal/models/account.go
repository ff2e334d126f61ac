package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types
const (
	AccountTypeCash      = "cash"
	AccountTypeBank      = "bank"
	AccountTypeSales     = "sales"
	AccountTypePurchases = "purchases"
	AccountTypeCustomer  = "customer"
	AccountTypeSupplier  = "supplier"
	AccountTypeExpense   = "expense"
)

// Account holds a signed running balance scoped to a company branch.
// The ledger mutates Balance only, and only under a row lock; every
// other field is owned by account-provisioning workflows.
type Account struct {
	ID             uint            `gorm:"primarykey"`
	CompanyID      uint            `gorm:"not null;index"`
	BranchID       uint            `gorm:"not null;index"`
	Type           string          `gorm:"type:varchar(20);not null;index"`
	Name           string          `gorm:"type:varchar(100)"`
	OpeningBalance decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	Balance        decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	IsActive       bool            `gorm:"not null;default:true"`
	IsFrozen       bool            `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
