package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kariy/starkmint/types"
)

var (
	ErrEmptyProgram    = errors.New("program is empty")
	ErrEmptyFunction   = errors.New("entry point is empty")
	ErrUnknownFunction = errors.New("entry point not found in program")
)

// ProgramValidator is the default CanonicalHasher. It checks that a payload
// names an entry point of its program and hashes the canonical encoding of
// the payload. It does not run the program.
type ProgramValidator struct{}

var _ types.CanonicalHasher = ProgramValidator{}

func NewProgramValidator() ProgramValidator {
	return ProgramValidator{}
}

// CanonicalHash implements types.CanonicalHasher
func (pv ProgramValidator) CanonicalHash(tt types.TransactionType) (string, error) {
	if tt == nil {
		return "", types.ErrMissingTransactionType
	}
	if err := tt.Accept(pv); err != nil {
		return "", err
	}

	bz, err := types.EncodeTransactionType(tt)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(bz)
	return hex.EncodeToString(sum[:]), nil
}

// VisitFunctionExecution implements types.TransactionTypeVisitor
func (ProgramValidator) VisitFunctionExecution(fe types.FunctionExecution) error {
	switch {
	case strings.TrimSpace(fe.Program) == "":
		return ErrEmptyProgram
	case fe.Function == "":
		return ErrEmptyFunction
	case !strings.Contains(fe.Program, fe.Function):
		return fmt.Errorf("%w: %s", ErrUnknownFunction, fe.Function)
	}
	return nil
}
