package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/models"
	"ledger/internal/repositories"
	"ledger/internal/utils"
)

type service struct {
	repo    repositories.LedgerRepository
	cache   repositories.BalanceCache
	metrics MetricsCollector
}

// NewService creates a new ledger engine. Cache and metrics are optional;
// nil gets a no-op implementation.
func NewService(repo repositories.LedgerRepository, cache repositories.BalanceCache, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{repo: repo, cache: cache, metrics: metrics}
}

func (s *service) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.DebitAccountID == req.CreditAccountID {
		return nil, ErrSameAccount
	}

	for _, id := range []uint{req.DebitAccountID, req.CreditAccountID} {
		account, err := s.repo.GetAccount(ctx, id)
		if err != nil {
			return nil, s.mapRepoErr("create", err)
		}
		if account.CompanyID != req.CompanyID || account.BranchID != req.BranchID {
			return nil, ErrScopeMismatch
		}
		if !account.IsActive {
			return nil, ErrAccountInactive
		}
	}

	txn := &models.Transaction{
		CompanyID:       req.CompanyID,
		BranchID:        req.BranchID,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Amount:          req.Amount,
		Type:            req.Type,
		Category:        req.Category,
		CustomerID:      req.CustomerID,
		SupplierID:      req.SupplierID,
		Number:          newTransactionNumber(req.CompanyID),
		Status:          models.TransactionStatusUnsettled,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return txn, nil
}

func (s *service) ApplyTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.mapRepoErr("apply", err)
	}
	if txn.Status != models.TransactionStatusUnsettled {
		return nil, ErrAlreadySettled
	}

	// One atomic unit: lock, validate, mutate, set terminal status. The
	// UNSETTLED->COMPLETED transition is conditional, so a concurrent
	// apply of the same transaction loses with ErrStatusConflict and the
	// unit rolls back without touching balances twice. A validation
	// failure commits only the FAILED status since no balance was staged
	// yet; any other failure rolls the whole unit back.
	var validationErr error
	err = s.repo.WithinTransaction(ctx, func(r repositories.LedgerRepository) error {
		if verr := s.validateApply(txn); verr != nil {
			validationErr = verr
			return r.TransitionTransactionStatus(ctx, txn.ID, models.TransactionStatusUnsettled, models.TransactionStatusFailed)
		}

		accounts, err := r.LockAccounts(ctx, txn.DebitAccountID, txn.CreditAccountID)
		if err != nil {
			return err
		}
		debit := accounts[txn.DebitAccountID]
		credit := accounts[txn.CreditAccountID]

		if debit.IsFrozen || credit.IsFrozen {
			validationErr = ErrAccountFrozen
			return r.TransitionTransactionStatus(ctx, txn.ID, models.TransactionStatusUnsettled, models.TransactionStatusFailed)
		}

		debit.Balance = debit.Balance.Add(txn.Amount)
		credit.Balance = credit.Balance.Sub(txn.Amount)
		if err := r.SaveAccountBalance(ctx, debit); err != nil {
			return err
		}
		if err := r.SaveAccountBalance(ctx, credit); err != nil {
			return err
		}
		return r.TransitionTransactionStatus(ctx, txn.ID, models.TransactionStatusUnsettled, models.TransactionStatusCompleted)
	})
	if errors.Is(err, repositories.ErrStatusConflict) {
		// Another apply settled the transaction first; nothing to record.
		s.metrics.RecordError("apply", "status_conflict")
		return nil, ErrAlreadySettled
	}
	if err != nil {
		// The unit rolled back; record the terminal failure durably.
		s.markFailed(ctx, txn.ID, "apply")
		s.metrics.RecordError("apply", errType(err))
		return nil, s.mapRepoErr("apply", err)
	}
	if validationErr != nil {
		txn.Status = models.TransactionStatusFailed
		s.metrics.RecordError("apply", errType(validationErr))
		return nil, validationErr
	}

	txn.Status = models.TransactionStatusCompleted
	s.invalidateBalances(ctx, txn.DebitAccountID, txn.CreditAccountID)
	s.metrics.RecordTransaction("apply", txn.Amount)
	return txn, nil
}

// markFailed durably records the terminal failure of an unsettled
// transaction after its unit rolled back. A status conflict means a
// concurrent settlement already moved it, so there is nothing left to
// record; any other error leaves the transaction UNSETTLED and is
// logged so the stuck row can be found.
func (s *service) markFailed(ctx context.Context, transactionID uint, op string) {
	err := s.repo.TransitionTransactionStatus(ctx, transactionID, models.TransactionStatusUnsettled, models.TransactionStatusFailed)
	if err != nil && !errors.Is(err, repositories.ErrStatusConflict) {
		utils.GetLogger().WithError(err).
			WithField("transaction_id", transactionID).
			WithField("operation", op).
			Error("failed to record transaction failure")
	}
}

func (s *service) validateApply(txn *models.Transaction) error {
	if !txn.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if txn.DebitAccountID == txn.CreditAccountID {
		return ErrSameAccount
	}
	return nil
}

func (s *service) ReverseTransaction(ctx context.Context, transactionID uint) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.mapRepoErr("reverse", err)
	}
	if txn.Status != models.TransactionStatusCompleted {
		return nil, ErrNotReversible
	}

	reversal := &models.Transaction{
		CompanyID:       txn.CompanyID,
		BranchID:        txn.BranchID,
		DebitAccountID:  txn.CreditAccountID,
		CreditAccountID: txn.DebitAccountID,
		Amount:          txn.Amount,
		Type:            models.TransactionTypeReversal,
		Category:        txn.Category,
		CustomerID:      txn.CustomerID,
		SupplierID:      txn.SupplierID,
		Number:          newTransactionNumber(txn.CompanyID),
		Status:          models.TransactionStatusCompleted,
		ReversalOfID:    &txn.ID,
	}

	err = s.repo.WithinTransaction(ctx, func(r repositories.LedgerRepository) error {
		accounts, err := r.LockAccounts(ctx, txn.DebitAccountID, txn.CreditAccountID)
		if err != nil {
			return err
		}
		debit := accounts[txn.DebitAccountID]
		credit := accounts[txn.CreditAccountID]

		if debit.IsFrozen || credit.IsFrozen {
			return ErrAccountFrozen
		}

		debit.Balance = debit.Balance.Sub(txn.Amount)
		credit.Balance = credit.Balance.Add(txn.Amount)
		if err := r.SaveAccountBalance(ctx, debit); err != nil {
			return err
		}
		if err := r.SaveAccountBalance(ctx, credit); err != nil {
			return err
		}
		if err := r.CreateTransaction(ctx, reversal); err != nil {
			return err
		}
		return r.TransitionTransactionStatus(ctx, txn.ID, models.TransactionStatusCompleted, models.TransactionStatusReversed)
	})
	if errors.Is(err, repositories.ErrStatusConflict) {
		// Another reversal won; the unit rolled back the duplicate entry.
		s.metrics.RecordError("reverse", "status_conflict")
		return nil, ErrNotReversible
	}
	if err != nil {
		s.metrics.RecordError("reverse", errType(err))
		if IsValidation(err) {
			return nil, err
		}
		return nil, s.mapRepoErr("reverse", err)
	}

	s.invalidateBalances(ctx, txn.DebitAccountID, txn.CreditAccountID)
	s.metrics.RecordTransaction("reverse", txn.Amount)
	return reversal, nil
}

func (s *service) TransferFunds(ctx context.Context, fromAccountID, toAccountID uint, amount decimal.Decimal) error {
	err := s.repo.WithinTransaction(ctx, func(r repositories.LedgerRepository) error {
		return s.TransferFundsTx(ctx, r, fromAccountID, toAccountID, amount)
	})
	if err != nil {
		s.metrics.RecordError("transfer", errType(err))
		return err
	}
	s.invalidateBalances(ctx, fromAccountID, toAccountID)
	s.metrics.RecordTransaction("transfer", amount)
	return nil
}

func (s *service) TransferFundsTx(ctx context.Context, repo repositories.LedgerRepository, fromAccountID, toAccountID uint, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if fromAccountID == toAccountID {
		return ErrSameAccount
	}

	accounts, err := repo.LockAccounts(ctx, fromAccountID, toAccountID)
	if err != nil {
		return s.mapRepoErr("transfer", err)
	}
	from := accounts[fromAccountID]
	to := accounts[toAccountID]

	if from.IsFrozen || to.IsFrozen {
		return ErrAccountFrozen
	}
	if from.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	if err := repo.SaveAccountBalance(ctx, from); err != nil {
		return s.mapRepoErr("transfer", err)
	}
	if err := repo.SaveAccountBalance(ctx, to); err != nil {
		return s.mapRepoErr("transfer", err)
	}
	return nil
}

func (s *service) invalidateBalances(ctx context.Context, accountIDs ...uint) {
	for _, id := range accountIDs {
		_ = s.cache.InvalidateBalance(ctx, id)
	}
}

func (s *service) mapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repositories.ErrTransactionNotFound):
		return ErrTransactionNotFound
	case errors.Is(err, repositories.ErrLockTimeout):
		return ErrLockContention
	case IsValidation(err), errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrLockContention), IsNotFound(err):
		return err
	default:
		return fmt.Errorf("%s: persistence failure: %w", op, err)
	}
}

func errType(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrLockContention), errors.Is(err, repositories.ErrLockTimeout):
		return "lock_contention"
	case IsNotFound(err):
		return "not_found"
	default:
		return "persistence"
	}
}

func newTransactionNumber(companyID uint) string {
	return fmt.Sprintf("TXN-%d-%s", companyID, uuid.NewString())
}

type noopCache struct{}

func (noopCache) GetBalance(context.Context, uint) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("cache disabled")
}
func (noopCache) SetBalance(context.Context, uint, decimal.Decimal) error { return nil }
func (noopCache) InvalidateBalance(context.Context, uint) error           { return nil }
