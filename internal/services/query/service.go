// Package query provides read-only views over the ledger: cached balance
// reads, transaction history, and balance reconciliation.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/models"
	"ledger/internal/repositories"
)

// ErrAccountNotFound mirrors the repository sentinel for callers of this
// package.
var ErrAccountNotFound = errors.New("account not found")

const defaultHistoryLimit = 50

// ReconciliationResult compares an account's stored balance with the value
// recomputed from its transaction history.
type ReconciliationResult struct {
	AccountID uint
	Stored    decimal.Decimal
	Expected  decimal.Decimal
	Drift     decimal.Decimal
	Balanced  bool
}

// Service is the read-only query surface of the ledger.
type Service interface {
	GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error)
	GetAccountHistory(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error)

	// ReconcileAccount recomputes the account's expected balance as its
	// opening balance plus the signed sum of applied transaction deltas
	// and compares it with the stored value.
	ReconcileAccount(ctx context.Context, accountID uint) (*ReconciliationResult, error)
}

type service struct {
	repo  repositories.LedgerRepository
	cache repositories.BalanceCache
}

// NewService creates a new query service. Cache is optional.
func NewService(repo repositories.LedgerRepository, cache repositories.BalanceCache) Service {
	if repo == nil {
		panic("repo is required")
	}
	return &service{repo: repo, cache: cache}
}

func (s *service) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	if s.cache != nil {
		if balance, err := s.cache.GetBalance(ctx, accountID); err == nil {
			return balance, nil
		}
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.SetBalance(ctx, accountID, account.Balance)
	}
	return account.Balance, nil
}

func (s *service) GetTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func (s *service) GetAccountHistory(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.repo.ListAccountTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get account history: %w", err)
	}
	return txns, nil
}

func (s *service) ReconcileAccount(ctx context.Context, accountID uint) (*ReconciliationResult, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to reconcile account: %w", err)
	}

	deltas, err := s.repo.SumAccountDeltas(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile account: %w", err)
	}

	expected := account.OpeningBalance.Add(deltas)
	return &ReconciliationResult{
		AccountID: accountID,
		Stored:    account.Balance,
		Expected:  expected,
		Drift:     account.Balance.Sub(expected),
		Balanced:  account.Balance.Equal(expected),
	}, nil
}
