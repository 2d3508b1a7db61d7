package state

import (
	"hash"
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// AppHashAccumulator folds the canonical hashes of delivered transactions
// into a running SHA-256. Folds are applied one at a time in call order and
// cannot be undone.
type AppHashAccumulator struct {
	mtx      sync.Mutex
	hasher   hash.Hash
	folds    uint64
	poisoned bool
}

// NewAppHashAccumulator starts from the empty digest, also after a restart.
// TODO: persist the digest next to the height record and resume from it, so a
// restarted node keeps producing the same app hashes as its peers.
func NewAppHashAccumulator() *AppHashAccumulator {
	return newAppHashAccumulator(tmhash.New())
}

func newAppHashAccumulator(h hash.Hash) *AppHashAccumulator {
	return &AppHashAccumulator{hasher: h}
}

// Fold feeds txHash into the accumulator. If the write fails or panics the
// accumulator is poisoned for good.
func (acc *AppHashAccumulator) Fold(txHash []byte) (err error) {
	acc.mtx.Lock()
	defer acc.mtx.Unlock()

	if acc.poisoned {
		return ErrAccumulatorPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			acc.poisoned = true
			err = errors.Wrapf(ErrAccumulatorPoisoned, "fold panicked: %v", r)
		}
	}()

	if _, err := acc.hasher.Write(txHash); err != nil {
		acc.poisoned = true
		return errors.Wrapf(ErrAccumulatorPoisoned, "fold failed: %v", err)
	}
	acc.folds++
	return nil
}

// Snapshot returns the digest of every fold so far. It does not reset.
func (acc *AppHashAccumulator) Snapshot() ([]byte, error) {
	acc.mtx.Lock()
	defer acc.mtx.Unlock()

	if acc.poisoned {
		return nil, ErrAccumulatorPoisoned
	}
	return acc.hasher.Sum(nil), nil
}

func (acc *AppHashAccumulator) Folds() uint64 {
	acc.mtx.Lock()
	defer acc.mtx.Unlock()
	return acc.folds
}
