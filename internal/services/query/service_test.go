package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/models"
	"ledger/internal/repositories/memory"
	"ledger/internal/services/ledger"
)

type fakeCache struct {
	balances map[uint]decimal.Decimal
	hits     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{balances: make(map[uint]decimal.Decimal)}
}

func (c *fakeCache) GetBalance(_ context.Context, accountID uint) (decimal.Decimal, error) {
	balance, ok := c.balances[accountID]
	if !ok {
		return decimal.Zero, errors.New("cache miss")
	}
	c.hits++
	return balance, nil
}

func (c *fakeCache) SetBalance(_ context.Context, accountID uint, balance decimal.Decimal) error {
	c.balances[accountID] = balance
	return nil
}

func (c *fakeCache) InvalidateBalance(_ context.Context, accountID uint) error {
	delete(c.balances, accountID)
	return nil
}

func seedAccount(t *testing.T, repo *memory.Ledger, balance string) *models.Account {
	t.Helper()
	amount := decimal.RequireFromString(balance)
	account := &models.Account{
		CompanyID:      1,
		BranchID:       1,
		Type:           models.AccountTypeBank,
		OpeningBalance: amount,
		Balance:        amount,
		IsActive:       true,
	}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

func applyTransaction(t *testing.T, repo *memory.Ledger, debitID, creditID uint, amount string) *models.Transaction {
	t.Helper()
	svc := ledger.NewService(repo, nil, nil)
	txn, err := svc.CreateTransaction(context.Background(), ledger.CreateTransactionRequest{
		CompanyID: 1, BranchID: 1,
		DebitAccountID: debitID, CreditAccountID: creditID,
		Type:   models.TransactionTypeSale,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	applied, err := svc.ApplyTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	return applied
}

func TestGetBalance(t *testing.T) {
	repo := memory.NewLedger(time.Second)
	cache := newFakeCache()
	svc := NewService(repo, cache)
	ctx := context.Background()

	account := seedAccount(t, repo, "250")

	balance, err := svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("250")))
	assert.Zero(t, cache.hits)

	// Second read is served from the cache.
	balance, err = svc.GetBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, 1, cache.hits)

	_, err = svc.GetBalance(ctx, 9999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetAccountHistory(t *testing.T) {
	repo := memory.NewLedger(time.Second)
	svc := NewService(repo, nil)
	ctx := context.Background()

	a := seedAccount(t, repo, "1000")
	b := seedAccount(t, repo, "1000")
	first := applyTransaction(t, repo, a.ID, b.ID, "10")
	second := applyTransaction(t, repo, b.ID, a.ID, "20")

	history, err := svc.GetAccountHistory(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	limited, err := svc.GetAccountHistory(ctx, a.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestReconcileAccount(t *testing.T) {
	t.Run("balanced account", func(t *testing.T) {
		repo := memory.NewLedger(time.Second)
		svc := NewService(repo, nil)
		ctx := context.Background()

		a := seedAccount(t, repo, "100")
		b := seedAccount(t, repo, "500")
		applyTransaction(t, repo, a.ID, b.ID, "50")

		result, err := svc.ReconcileAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, result.Balanced)
		assert.True(t, result.Stored.Equal(decimal.RequireFromString("150")))
		assert.True(t, result.Expected.Equal(decimal.RequireFromString("150")))
		assert.True(t, result.Drift.IsZero())
	})

	t.Run("reversed transactions net out", func(t *testing.T) {
		repo := memory.NewLedger(time.Second)
		svc := NewService(repo, nil)
		ctx := context.Background()

		a := seedAccount(t, repo, "100")
		b := seedAccount(t, repo, "500")
		txn := applyTransaction(t, repo, a.ID, b.ID, "50")

		ledgerSvc := ledger.NewService(repo, nil, nil)
		_, err := ledgerSvc.ReverseTransaction(ctx, txn.ID)
		require.NoError(t, err)

		for _, id := range []uint{a.ID, b.ID} {
			result, err := svc.ReconcileAccount(ctx, id)
			require.NoError(t, err)
			assert.True(t, result.Balanced, "account %d drifted by %s", id, result.Drift)
		}
	})

	t.Run("detects drift", func(t *testing.T) {
		repo := memory.NewLedger(time.Second)
		svc := NewService(repo, nil)
		ctx := context.Background()

		a := seedAccount(t, repo, "100")
		b := seedAccount(t, repo, "500")
		applyTransaction(t, repo, a.ID, b.ID, "50")

		// Corrupt the stored balance behind the ledger's back.
		corrupted := *a
		corrupted.Balance = decimal.RequireFromString("999")
		require.NoError(t, repo.SaveAccountBalance(ctx, &corrupted))

		result, err := svc.ReconcileAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, result.Balanced)
		assert.True(t, result.Drift.Equal(decimal.RequireFromString("849")))
	})

	t.Run("missing account", func(t *testing.T) {
		repo := memory.NewLedger(time.Second)
		svc := NewService(repo, nil)
		_, err := svc.ReconcileAccount(context.Background(), 42)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
