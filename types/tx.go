package types

import (
	"fmt"

	"github.com/google/uuid"
)

// CanonicalHasher computes the canonical hash of a transaction payload.
// The node never trusts the hash embedded in a transaction; it recomputes
// it with a CanonicalHasher and compares.
type CanonicalHasher interface {
	CanonicalHash(TransactionType) (string, error)
}

// Transaction is the unit submitted by clients and applied by the application.
// Immutable once constructed.
type Transaction struct {
	ID   string
	Hash string
	Type TransactionType
}

// NewTransaction wraps the payload in a Transaction with a fresh id and the
// hash computed by hasher.
func NewTransaction(tt TransactionType, hasher CanonicalHasher) (*Transaction, error) {
	if tt == nil {
		return nil, ErrMissingTransactionType
	}
	hash, err := hasher.CanonicalHash(tt)
	if err != nil {
		return nil, fmt.Errorf("computing transaction hash: %w", err)
	}

	return &Transaction{
		ID:   uuid.NewString(),
		Hash: hash,
		Type: tt,
	}, nil
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("Transaction{%s %s %v}", tx.ID, tx.Hash, tx.Type.Kind())
}

// ===== transaction types =====

// TransactionKind is the wire tag of a TransactionType variant.
type TransactionKind uint8

const (
	KindFunctionExecution TransactionKind = iota + 1
)

func (k TransactionKind) String() string {
	switch k {
	case KindFunctionExecution:
		return "function_execution"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// TransactionType is the closed set of transaction payloads.
// Every variant is handled through a TransactionTypeVisitor, so adding a
// variant means adding a Visit method and every visitor has to handle it.
type TransactionType interface {
	Kind() TransactionKind
	Accept(v TransactionTypeVisitor) error
}

// TransactionTypeVisitor handles each TransactionType variant.
type TransactionTypeVisitor interface {
	VisitFunctionExecution(FunctionExecution) error
}

// FunctionExecution runs Function of the named program.
type FunctionExecution struct {
	Program     string `codec:"program"`
	Function    string `codec:"function"`
	ProgramName string `codec:"program_name"`
	EnableTrace bool   `codec:"enable_trace"`
}

var _ TransactionType = FunctionExecution{}

func (FunctionExecution) Kind() TransactionKind { return KindFunctionExecution }

func (fe FunctionExecution) Accept(v TransactionTypeVisitor) error {
	return v.VisitFunctionExecution(fe)
}
