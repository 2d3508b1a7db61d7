package mock

import (
	"sync"

	"github.com/kariy/starkmint/types"
)

// Hasher is a scriptable CanonicalHasher, useful for testing.
type Hasher struct {
	mtx   sync.Mutex
	fn    func(types.TransactionType) (string, error)
	calls int
}

var _ types.CanonicalHasher = (*Hasher)(nil)

func NewHasher(fn func(types.TransactionType) (string, error)) *Hasher {
	return &Hasher{fn: fn}
}

// FixedHasher returns hash for every payload.
func FixedHasher(hash string) *Hasher {
	return NewHasher(func(types.TransactionType) (string, error) { return hash, nil })
}

// FailingHasher fails every payload with err.
func FailingHasher(err error) *Hasher {
	return NewHasher(func(types.TransactionType) (string, error) { return "", err })
}

func (h *Hasher) CanonicalHash(tt types.TransactionType) (string, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.calls++
	return h.fn(tt)
}

func (h *Hasher) Calls() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.calls
}
