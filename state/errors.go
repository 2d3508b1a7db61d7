package state

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedStep is returned when a block call arrives out of order,
	// e.g. DeliverTx before BeginBlock.
	ErrUnexpectedStep = errors.New("unexpected block step")
	// ErrAccumulatorPoisoned is returned by every call on an accumulator
	// after a fold failed midway.
	ErrAccumulatorPoisoned = errors.New("app hash accumulator is poisoned")
)

// FatalError marks a protocol defect or a persistence failure. The process
// must not keep serving the consensus engine after one.
type FatalError struct {
	Err error
}

func (e FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e FatalError) Unwrap() error {
	return e.Err
}

func fatal(err error, msg string) error {
	return FatalError{Err: errors.Wrap(err, msg)}
}

func IsFatal(err error) bool {
	var fe FatalError
	return errors.As(err, &fe)
}

func errUnexpectedStep(call string, got blockStep) error {
	return FatalError{Err: errors.Wrapf(ErrUnexpectedStep, "%s during %v", call, got)}
}
