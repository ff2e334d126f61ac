package ledger

import "errors"

// Service errors
var (
	// Validation errors, raised before any balance mutation
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrSameAccount     = errors.New("debit and credit accounts must be different")
	ErrAccountFrozen   = errors.New("account is frozen")
	ErrAccountInactive = errors.New("account is inactive")
	ErrScopeMismatch   = errors.New("account does not belong to the transaction scope")
	ErrAlreadySettled  = errors.New("transaction has already been settled")
	ErrNotReversible   = errors.New("only completed transactions can be reversed")

	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrLockContention      = errors.New("account lock not acquired within wait bound")
)

// IsValidation reports whether err is a pre-mutation validation failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrSameAccount, ErrAccountFrozen, ErrAccountInactive,
		ErrScopeMismatch, ErrAlreadySettled, ErrNotReversible,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means a referenced record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrTransactionNotFound)
}
