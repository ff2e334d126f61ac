package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TransactionStatusUnsettled = "UNSETTLED"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusReversed  = "REVERSED"
)

// Transaction types
const (
	TransactionTypeSale           = "SALE"
	TransactionTypePurchase       = "PURCHASE"
	TransactionTypePayment        = "PAYMENT"
	TransactionTypeBranchTransfer = "BRANCH_TRANSFER"
	TransactionTypeReversal       = "REVERSAL"
	TransactionTypeAdjustment     = "ADJUSTMENT"
)

// Transaction is a two-account ledger entry. Under the signed convention
// used throughout this engine the debit account's balance increases by
// Amount and the credit account's decreases by the same amount, for every
// account type.
type Transaction struct {
	ID              uint            `gorm:"primarykey"`
	CompanyID       uint            `gorm:"not null;index"`
	BranchID        uint            `gorm:"not null;index"`
	DebitAccountID  uint            `gorm:"not null;index"`
	CreditAccountID uint            `gorm:"not null;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Type            string          `gorm:"type:varchar(30);not null"`
	Category        string          `gorm:"type:varchar(50)"`
	CustomerID      *uint           `gorm:"index"`
	SupplierID      *uint           `gorm:"index"`
	Number          string          `gorm:"type:varchar(60);not null;uniqueIndex"`
	Status          string          `gorm:"type:varchar(20);not null;default:'UNSETTLED';index"`
	ReversalOfID    *uint           `gorm:"index"` // set on reversal entries only
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Delta returns the signed balance effect of the transaction on the given
// account: +Amount on the debit side, -Amount on the credit side, zero for
// unrelated accounts.
func (t *Transaction) Delta(accountID uint) decimal.Decimal {
	switch accountID {
	case t.DebitAccountID:
		return t.Amount
	case t.CreditAccountID:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}
