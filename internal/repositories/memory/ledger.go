// Package memory provides an in-memory LedgerRepository with the same
// locking semantics as the Postgres implementation: exclusive per-account
// locks acquired in ascending-ID order with a bounded wait, and
// transactional rollback via an undo log. It backs the service tests and
// local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/models"
	"ledger/internal/repositories"
)

// ErrNoTransaction is returned when a lock is requested outside a
// WithinTransaction scope.
var ErrNoTransaction = errors.New("row locks require a transaction scope")

const defaultLockWait = 5 * time.Second

// Ledger is an in-memory LedgerRepository.
type Ledger struct {
	mu           sync.Mutex
	accounts     map[uint]*models.Account
	accountLocks map[uint]*sync.Mutex
	transactions map[uint]*models.Transaction
	transfers    map[uint]*models.Transfer
	numbers      map[string]struct{}

	nextAccountID     uint
	nextTransactionID uint
	nextTransferID    uint

	lockWait time.Duration
}

// NewLedger creates an empty in-memory ledger store. lockWait bounds
// per-account lock acquisition; zero uses a 5s default.
func NewLedger(lockWait time.Duration) *Ledger {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Ledger{
		accounts:     make(map[uint]*models.Account),
		accountLocks: make(map[uint]*sync.Mutex),
		transactions: make(map[uint]*models.Transaction),
		transfers:    make(map[uint]*models.Transfer),
		numbers:      make(map[string]struct{}),
		lockWait:     lockWait,
	}
}

func (l *Ledger) WithinTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	tx := &txLedger{parent: l}
	err := fn(tx)
	if err != nil {
		tx.rollback()
	}
	tx.releaseLocks()
	return err
}

func (l *Ledger) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (l *Ledger) ListAccounts(ctx context.Context) ([]models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	accounts := make([]models.Account, 0, len(l.accounts))
	for _, account := range l.accounts {
		accounts = append(accounts, *account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (l *Ledger) GetCashAccount(ctx context.Context, companyID, branchID uint) (*models.Account, error) {
	accounts, err := l.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		a := accounts[i]
		if a.CompanyID == companyID && a.BranchID == branchID &&
			a.Type == models.AccountTypeCash && a.IsActive {
			return &a, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (l *Ledger) CreateAccount(ctx context.Context, account *models.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createAccountLocked(account)
}

func (l *Ledger) createAccountLocked(account *models.Account) error {
	// Mirrors the partial unique index: one active cash account per
	// branch.
	if account.Type == models.AccountTypeCash && account.IsActive {
		for _, existing := range l.accounts {
			if existing.ID != account.ID &&
				existing.CompanyID == account.CompanyID &&
				existing.BranchID == account.BranchID &&
				existing.Type == models.AccountTypeCash && existing.IsActive {
				return repositories.ErrDuplicateAccount
			}
		}
	}
	if account.ID == 0 {
		l.nextAccountID++
		account.ID = l.nextAccountID
	} else if account.ID > l.nextAccountID {
		l.nextAccountID = account.ID
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	copied := *account
	l.accounts[account.ID] = &copied
	return nil
}

func (l *Ledger) LockAccounts(ctx context.Context, ids ...uint) (map[uint]*models.Account, error) {
	return nil, ErrNoTransaction
}

func (l *Ledger) SaveAccountBalance(ctx context.Context, account *models.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.accounts[account.ID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	stored.Balance = account.Balance
	stored.UpdatedAt = time.Now()
	return nil
}

func (l *Ledger) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createTransactionLocked(txn)
}

func (l *Ledger) createTransactionLocked(txn *models.Transaction) error {
	if _, exists := l.numbers[txn.Number]; exists {
		return fmt.Errorf("duplicate transaction number %q", txn.Number)
	}
	l.nextTransactionID++
	txn.ID = l.nextTransactionID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	copied := *txn
	l.transactions[txn.ID] = &copied
	l.numbers[txn.Number] = struct{}{}
	return nil
}

func (l *Ledger) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.transactions[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (l *Ledger) TransitionTransactionStatus(ctx context.Context, id uint, from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.transactions[id]
	if !ok {
		return repositories.ErrTransactionNotFound
	}
	if txn.Status != from {
		return repositories.ErrStatusConflict
	}
	txn.Status = to
	txn.UpdatedAt = time.Now()
	return nil
}

func (l *Ledger) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTransferID++
	transfer.ID = l.nextTransferID
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}
	copied := *transfer
	l.transfers[transfer.ID] = &copied
	return nil
}

func (l *Ledger) GetTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	transfer, ok := l.transfers[id]
	if !ok {
		return nil, repositories.ErrTransferNotFound
	}
	copied := *transfer
	return &copied, nil
}

// TransferCount reports how many transfer records exist.
func (l *Ledger) TransferCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transfers)
}

func (l *Ledger) ListAccountTransactions(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var txns []models.Transaction
	for _, txn := range l.transactions {
		if txn.DebitAccountID == accountID || txn.CreditAccountID == accountID {
			txns = append(txns, *txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID > txns[j].ID
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	if offset >= len(txns) {
		return nil, nil
	}
	txns = txns[offset:]
	if limit > 0 && limit < len(txns) {
		txns = txns[:limit]
	}
	return txns, nil
}

func (l *Ledger) SumAccountDeltas(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := decimal.Zero
	for _, txn := range l.transactions {
		if txn.Status != models.TransactionStatusCompleted &&
			txn.Status != models.TransactionStatusReversed {
			continue
		}
		sum = sum.Add(txn.Delta(accountID))
	}
	return sum, nil
}

// lockFor returns the lock guarding the given account row, creating it on
// first use.
func (l *Ledger) lockFor(id uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.accountLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.accountLocks[id] = lock
	}
	return lock
}

// txLedger is a transaction-scoped view of the store. Writes go through
// directly but record compensating actions; a failed unit replays the undo
// log in reverse.
type txLedger struct {
	parent *Ledger
	locked []*sync.Mutex
	undo   []func()
}

// WithinTransaction joins the ambient scope.
func (t *txLedger) WithinTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	return fn(t)
}

func (t *txLedger) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txLedger) releaseLocks() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].Unlock()
	}
	t.locked = nil
}

func (t *txLedger) acquire(ctx context.Context, lock *sync.Mutex) error {
	deadline := time.Now().Add(t.parent.lockWait)
	for {
		if lock.TryLock() {
			t.locked = append(t.locked, lock)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return repositories.ErrLockTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *txLedger) LockAccounts(ctx context.Context, ids ...uint) (map[uint]*models.Account, error) {
	sorted := make([]uint, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if err := t.acquire(ctx, t.parent.lockFor(id)); err != nil {
			return nil, err
		}
	}

	locked := make(map[uint]*models.Account, len(sorted))
	for _, id := range sorted {
		account, err := t.parent.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func (t *txLedger) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return t.parent.GetAccount(ctx, id)
}

func (t *txLedger) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return t.parent.ListAccounts(ctx)
}

func (t *txLedger) GetCashAccount(ctx context.Context, companyID, branchID uint) (*models.Account, error) {
	return t.parent.GetCashAccount(ctx, companyID, branchID)
}

func (t *txLedger) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := t.parent.CreateAccount(ctx, account); err != nil {
		return err
	}
	id := account.ID
	t.undo = append(t.undo, func() {
		t.parent.mu.Lock()
		defer t.parent.mu.Unlock()
		delete(t.parent.accounts, id)
	})
	return nil
}

func (t *txLedger) SaveAccountBalance(ctx context.Context, account *models.Account) error {
	prev, err := t.parent.GetAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if err := t.parent.SaveAccountBalance(ctx, account); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		_ = t.parent.SaveAccountBalance(context.Background(), prev)
	})
	return nil
}

func (t *txLedger) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := t.parent.CreateTransaction(ctx, txn); err != nil {
		return err
	}
	id, number := txn.ID, txn.Number
	t.undo = append(t.undo, func() {
		t.parent.mu.Lock()
		defer t.parent.mu.Unlock()
		delete(t.parent.transactions, id)
		delete(t.parent.numbers, number)
	})
	return nil
}

func (t *txLedger) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	return t.parent.GetTransaction(ctx, id)
}

func (t *txLedger) TransitionTransactionStatus(ctx context.Context, id uint, from, to string) error {
	if err := t.parent.TransitionTransactionStatus(ctx, id, from, to); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		t.parent.mu.Lock()
		defer t.parent.mu.Unlock()
		if txn, ok := t.parent.transactions[id]; ok {
			txn.Status = from
		}
	})
	return nil
}

func (t *txLedger) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	if err := t.parent.CreateTransfer(ctx, transfer); err != nil {
		return err
	}
	id := transfer.ID
	t.undo = append(t.undo, func() {
		t.parent.mu.Lock()
		defer t.parent.mu.Unlock()
		delete(t.parent.transfers, id)
	})
	return nil
}

func (t *txLedger) GetTransfer(ctx context.Context, id uint) (*models.Transfer, error) {
	return t.parent.GetTransfer(ctx, id)
}

func (t *txLedger) ListAccountTransactions(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	return t.parent.ListAccountTransactions(ctx, accountID, limit, offset)
}

func (t *txLedger) SumAccountDeltas(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	return t.parent.SumAccountDeltas(ctx, accountID)
}

var _ repositories.LedgerRepository = (*Ledger)(nil)
var _ repositories.LedgerRepository = (*txLedger)(nil)
