package repositories

import "errors"

// Repository errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrLockTimeout         = errors.New("row lock not acquired within wait bound")
	ErrStatusConflict      = errors.New("transaction status changed concurrently")
	ErrDuplicateAccount    = errors.New("an active cash account already exists for the branch")
)
