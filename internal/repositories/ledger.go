package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/models"
)

// LedgerRepository is the persistence boundary of the ledger engine. All
// balance mutation happens through an explicit transaction scope obtained
// via WithinTransaction; the repository passed to the closure shares that
// scope, and every write made through it commits or rolls back as one unit.
type LedgerRepository interface {
	// WithinTransaction runs fn inside a single atomic unit. Returning a
	// non-nil error rolls back everything staged by the scoped repository.
	WithinTransaction(ctx context.Context, fn func(LedgerRepository) error) error

	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetCashAccount(ctx context.Context, companyID, branchID uint) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error

	// LockAccounts acquires exclusive row locks on the given accounts in
	// ascending-ID order, independent of argument order, and returns the
	// locked rows keyed by ID. A missing row yields ErrAccountNotFound; a
	// lock wait exceeding the configured bound yields ErrLockTimeout.
	LockAccounts(ctx context.Context, ids ...uint) (map[uint]*models.Account, error)

	// SaveAccountBalance writes back the balance column only. The caller
	// must hold the account's row lock.
	SaveAccountBalance(ctx context.Context, account *models.Account) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)

	// TransitionTransactionStatus moves the transaction from one status
	// to another. It fails with ErrStatusConflict when the stored status
	// no longer matches from, so a concurrent settlement of the same
	// transaction cannot commit twice.
	TransitionTransactionStatus(ctx context.Context, id uint, from, to string) error

	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
	GetTransfer(ctx context.Context, id uint) (*models.Transfer, error)

	ListAccountTransactions(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error)

	// SumAccountDeltas returns the signed sum of applied transaction
	// deltas for the account: +amount where it was debited, -amount where
	// it was credited, over COMPLETED and REVERSED entries. REVERSED
	// entries count because their effect was applied and is offset by the
	// linked reversal entry.
	SumAccountDeltas(ctx context.Context, accountID uint) (decimal.Decimal, error)
}
