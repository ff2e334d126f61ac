package repositories

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceCache caches account balances for read paths. Mutators invalidate
// entries after committing; a cache error is never fatal, readers fall
// through to the repository.
type BalanceCache interface {
	GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error)
	SetBalance(ctx context.Context, accountID uint, balance decimal.Decimal) error
	InvalidateBalance(ctx context.Context, accountID uint) error
}
