package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)

	ErrOrderNotPending          = errors.New("order is not pending")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrQuantityExceedsAvailable = errors.New("quantity exceeds available stock")
	ErrInvalidLineItem          = errors.New("invalid line item")
	ErrForbidden                = errors.New("forbidden")
	ErrInvalidDecision          = errors.New("invalid decision")
	ErrStorageUnavailable       = errors.New("storage unavailable")

	ErrProductUnavailable = errors.New("product is not available")
	ErrProductInUse       = errors.New("product is referenced by a pending transaction")
	ErrInvalidProduct     = errors.New("invalid product")
	ErrProductNameTaken   = errors.New("product name already exists")
	ErrDuplicateKey       = errors.New("duplicate key")
)

// Wrap annotates err with msg, keeping it matchable with errors.Is.
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
