package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/models"
	"ledger/internal/repositories"
)

// CreateTransactionRequest carries the named, typed fields of a new ledger
// transaction.
type CreateTransactionRequest struct {
	CompanyID       uint
	BranchID        uint
	DebitAccountID  uint
	CreditAccountID uint
	Type            string
	Category        string
	Amount          decimal.Decimal
	CustomerID      *uint
	SupplierID      *uint
}

// Service is the ledger engine: it creates transactions, applies them to
// account balances under canonical-order row locks, reverses them, and
// moves funds directly between two accounts.
type Service interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error)

	// ApplyTransaction settles an UNSETTLED transaction: it locks both
	// accounts in ascending-ID order, validates, applies debit += amount
	// and credit -= amount, and marks the transaction COMPLETED, all as
	// one atomic unit. On failure the transaction ends up FAILED and both
	// balances are untouched.
	ApplyTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error)

	// ReverseTransaction undoes a COMPLETED transaction: inverse deltas
	// under the same canonical locks, a linked COMPLETED reversal entry,
	// and the original marked REVERSED.
	ReverseTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error)

	// TransferFunds moves amount between two accounts without a
	// pre-existing transaction record. Fails with ErrInsufficientFunds if
	// the source balance is below amount.
	TransferFunds(ctx context.Context, fromAccountID, toAccountID uint, amount decimal.Decimal) error

	// TransferFundsTx is TransferFunds bound to a caller-supplied
	// transactional repository, so coordinators can compose the balance
	// move into a larger atomic unit.
	TransferFundsTx(ctx context.Context, repo repositories.LedgerRepository, fromAccountID, toAccountID uint, amount decimal.Decimal) error
}
