package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer records an inter-branch fund movement. It is written once by the
// transfer coordinator, linked to the ledger transaction that moved the
// money, and read-only afterward.
type Transfer struct {
	ID            uint            `gorm:"primarykey"`
	CompanyID     uint            `gorm:"not null;index"`
	FromBranchID  uint            `gorm:"not null;index"`
	ToBranchID    uint            `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	TransactionID *uint           `gorm:"index"`
	CreatedAt     time.Time
}
