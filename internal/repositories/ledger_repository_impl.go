package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger/internal/models"
)

// SQLSTATEs this repository branches on: lock_timeout expiry while waiting
// on a row lock, and unique-constraint violations.
const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

type ledgerRepository struct {
	db       *gorm.DB
	lockWait time.Duration
}

// NewLedgerRepository creates a Postgres-backed LedgerRepository. lockWait
// bounds how long any row-lock acquisition may block; zero disables the
// bound.
func NewLedgerRepository(db *gorm.DB, lockWait time.Duration) LedgerRepository {
	return &ledgerRepository{db: db, lockWait: lockWait}
}

func (r *ledgerRepository) WithinTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockWait > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockWait.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(&ledgerRepository{db: tx, lockWait: r.lockWait})
	})
}

func (r *ledgerRepository) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *ledgerRepository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (r *ledgerRepository) GetCashAccount(ctx context.Context, companyID, branchID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND branch_id = ? AND type = ? AND is_active = ?",
			companyID, branchID, models.AccountTypeCash, true).
		Order("id").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get cash account: %w", err)
	}
	return &account, nil
}

func (r *ledgerRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *ledgerRepository) LockAccounts(ctx context.Context, ids ...uint) (map[uint]*models.Account, error) {
	sorted := make([]uint, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}

	locked := make(map[uint]*models.Account, len(accounts))
	for i := range accounts {
		locked[accounts[i].ID] = &accounts[i]
	}
	for _, id := range sorted {
		if _, ok := locked[id]; !ok {
			return nil, ErrAccountNotFound
		}
	}
	return locked, nil
}

func (r *ledgerRepository) SaveAccountBalance(ctx context.Context, account *models.Account) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("balance", account.Balance)
	if result.Error != nil {
		return fmt.Errorf("failed to save account balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *ledgerRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

func (r *ledgerRepository) TransitionTransactionStatus(ctx context.Context, id uint, from, to string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		if count == 0 {
			return ErrTransactionNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *ledgerRepository) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	if err := r.db.WithContext(ctx).Create(transfer).Error; err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := r.db.WithContext(ctx).First(&transfer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return &transfer, nil
}

func (r *ledgerRepository) ListAccountTransactions(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("debit_account_id = ? OR credit_account_id = ?", accountID, accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list account transactions: %w", err)
	}
	return txns, nil
}

func (r *ledgerRepository) SumAccountDeltas(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE WHEN debit_account_id = ? THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE (debit_account_id = ? OR credit_account_id = ?)
		  AND status IN (?, ?)`,
		accountID, accountID, accountID,
		models.TransactionStatusCompleted, models.TransactionStatusReversed,
	).Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum account deltas: %w", err)
	}
	return sum, nil
}
