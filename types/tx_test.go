package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedHasher struct {
	hash string
	err  error
}

func (h fixedHasher) CanonicalHash(TransactionType) (string, error) {
	return h.hash, h.err
}

func testFunctionExecution() FunctionExecution {
	return FunctionExecution{
		Program:     `{"identifiers": {"__main__.main": {}}}`,
		Function:    "main",
		ProgramName: "fibonacci.json",
		EnableTrace: true,
	}
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction(testFunctionExecution(), fixedHasher{hash: "abcd"})
	require.NoError(t, err)
	assert.Equal(t, "abcd", tx.Hash)
	assert.NotEmpty(t, tx.ID)

	// every transaction gets its own id
	other, err := NewTransaction(testFunctionExecution(), fixedHasher{hash: "abcd"})
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID, other.ID)

	_, err = NewTransaction(testFunctionExecution(), fixedHasher{err: errors.New("boom")})
	assert.Error(t, err)

	_, err = NewTransaction(nil, fixedHasher{hash: "abcd"})
	assert.True(t, errors.Is(err, ErrMissingTransactionType))
}

func TestTransactionCodec(t *testing.T) {
	tx := &Transaction{ID: "1", Hash: "abcd", Type: testFunctionExecution()}

	bz, err := EncodeTransaction(tx)
	require.NoError(t, err)

	decoded, err := DecodeTransaction(bz)
	require.NoError(t, err)
	assert.Equal(t, tx, decoded)

	// the encoding is canonical
	again, err := EncodeTransaction(decoded)
	require.NoError(t, err)
	assert.Equal(t, bz, again)
}

func TestDecodeTransactionRejectsMalformedInput(t *testing.T) {
	valid, err := EncodeTransaction(&Transaction{ID: "1", Hash: "abcd", Type: testFunctionExecution()})
	require.NoError(t, err)

	unknownKind, err := marshal(wireTransaction{
		ID:   "2",
		Type: wireTransactionType{Kind: TransactionKind(42)},
		Hash: "abcd",
	})
	require.NoError(t, err)

	missingBody, err := marshal(wireTransaction{
		ID:   "3",
		Type: wireTransactionType{Kind: KindFunctionExecution},
		Hash: "abcd",
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  []byte
		target error
	}{
		{"empty", []byte{}, nil},
		{"garbage", []byte("garbage"), nil},
		{"truncated", valid[:len(valid)/2], nil},
		{"unknown kind", unknownKind, ErrUnknownTransactionKind},
		{"missing body", missingBody, ErrTransactionBodyMissing},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01), ErrTrailingBytes},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := DecodeTransaction(tc.input)
			require.Error(t, err)
			assert.Nil(t, tx)
			if tc.target != nil {
				assert.True(t, errors.Is(err, tc.target), "got %v", err)
			}
		})
	}
}

type kindCollector struct {
	functions []string
}

func (c *kindCollector) VisitFunctionExecution(fe FunctionExecution) error {
	c.functions = append(c.functions, fe.Function)
	return nil
}

func TestTransactionTypeVisitor(t *testing.T) {
	c := &kindCollector{}
	var tt TransactionType = testFunctionExecution()

	require.NoError(t, tt.Accept(c))
	assert.Equal(t, []string{"main"}, c.functions)
	assert.Equal(t, KindFunctionExecution, tt.Kind())
	assert.Equal(t, "function_execution", tt.Kind().String())
	assert.Equal(t, "unknown(9)", TransactionKind(9).String())
}

func TestEncodeTransactionTypeIsDeterministic(t *testing.T) {
	a, err := EncodeTransactionType(testFunctionExecution())
	require.NoError(t, err)
	b, err := EncodeTransactionType(testFunctionExecution())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := testFunctionExecution()
	changed.EnableTrace = false
	c, err := EncodeTransactionType(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
