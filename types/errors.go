package types

import "errors"

var (
	ErrMissingTransactionType = errors.New("transaction type is missing")
	ErrUnknownTransactionKind = errors.New("unknown transaction kind")
	ErrTransactionBodyMissing = errors.New("transaction body does not match its kind")
	ErrTrailingBytes          = errors.New("trailing bytes after transaction")
)
