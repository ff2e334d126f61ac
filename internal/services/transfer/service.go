// Package transfer coordinates inter-branch fund movements: it resolves
// the cash account of each branch, delegates the balance move to the
// ledger engine's locking primitive, and records an audit Transaction plus
// a Transfer record inside one atomic unit.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/models"
	"ledger/internal/repositories"
	"ledger/internal/services/ledger"
)

// Coordinator errors
var (
	ErrSameBranch    = errors.New("source and destination branches must be different")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

// TransferRequest describes an inter-branch cash movement.
type TransferRequest struct {
	CompanyID    uint
	FromBranchID uint
	ToBranchID   uint
	Amount       decimal.Decimal
	Category     string
}

// Service is the transfer coordinator.
type Service interface {
	Transfer(ctx context.Context, req TransferRequest) (*models.Transfer, error)
}

type service struct {
	repo   repositories.LedgerRepository
	ledger ledger.Service
}

// NewService creates a new transfer coordinator.
func NewService(repo repositories.LedgerRepository, ledgerSvc ledger.Service) Service {
	if repo == nil {
		panic("repo is required")
	}
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	return &service{repo: repo, ledger: ledgerSvc}
}

func (s *service) Transfer(ctx context.Context, req TransferRequest) (*models.Transfer, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.FromBranchID == req.ToBranchID {
		return nil, ErrSameBranch
	}

	var transfer *models.Transfer
	err := s.repo.WithinTransaction(ctx, func(r repositories.LedgerRepository) error {
		from, err := s.resolveCashAccount(ctx, r, req.CompanyID, req.FromBranchID)
		if err != nil {
			return err
		}
		to, err := s.resolveCashAccount(ctx, r, req.CompanyID, req.ToBranchID)
		if err != nil {
			return err
		}

		// The audit entry debits the destination branch and credits the
		// source, matching the signed convention of the balance move.
		txn := &models.Transaction{
			CompanyID:       req.CompanyID,
			BranchID:        req.FromBranchID,
			DebitAccountID:  to.ID,
			CreditAccountID: from.ID,
			Amount:          req.Amount,
			Type:            models.TransactionTypeBranchTransfer,
			Category:        req.Category,
			Number:          newTransferNumber(req.CompanyID),
			Status:          models.TransactionStatusUnsettled,
		}
		if err := r.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		if err := s.ledger.TransferFundsTx(ctx, r, from.ID, to.ID, req.Amount); err != nil {
			return err
		}
		if err := r.TransitionTransactionStatus(ctx, txn.ID, models.TransactionStatusUnsettled, models.TransactionStatusCompleted); err != nil {
			return err
		}

		transfer = &models.Transfer{
			CompanyID:     req.CompanyID,
			FromBranchID:  req.FromBranchID,
			ToBranchID:    req.ToBranchID,
			Amount:        req.Amount,
			TransactionID: &txn.ID,
		}
		return r.CreateTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// resolveCashAccount finds the branch's active cash account, provisioning
// one inside the current atomic unit when the branch has none yet.
func (s *service) resolveCashAccount(ctx context.Context, r repositories.LedgerRepository, companyID, branchID uint) (*models.Account, error) {
	account, err := r.GetCashAccount(ctx, companyID, branchID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repositories.ErrAccountNotFound) {
		return nil, err
	}

	account = &models.Account{
		CompanyID: companyID,
		BranchID:  branchID,
		Type:      models.AccountTypeCash,
		Name:      cashAccountName(branchID),
		IsActive:  true,
	}
	if err := r.CreateAccount(ctx, account); err != nil {
		// A concurrent transfer provisioned the account first; the unique
		// constraint guarantees exactly one, so use the winner's row.
		if errors.Is(err, repositories.ErrDuplicateAccount) {
			return r.GetCashAccount(ctx, companyID, branchID)
		}
		return nil, err
	}
	return account, nil
}

func newTransferNumber(companyID uint) string {
	return fmt.Sprintf("TRF-%d-%s", companyID, uuid.NewString())
}

func cashAccountName(branchID uint) string {
	return fmt.Sprintf("Branch %d cash", branchID)
}
