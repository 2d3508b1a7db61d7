package commands

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"

	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator"
	"github.com/kariy/starkmint/validator/mock"
)

type fakeBroadcaster struct {
	sent []tmtypes.Tx
	res  *ctypes.ResultBroadcastTx
	err  error
}

func (b *fakeBroadcaster) BroadcastTxSync(_ context.Context, tx tmtypes.Tx) (*ctypes.ResultBroadcastTx, error) {
	b.sent = append(b.sent, tx)
	return b.res, b.err
}

const testProgram = `{"identifiers": {"__main__.main": {}}}`

func writeProgram(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "fibonacci.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(testProgram), 0600))
	return path
}

func TestSubmitSendsTransaction(t *testing.T) {
	path := writeProgram(t)
	b := &fakeBroadcaster{res: &ctypes.ResultBroadcastTx{Code: types.CodeTypeOK}}
	out := &bytes.Buffer{}

	err := runSubmit(context.Background(), out, b, log.NewNopLogger(), submitRequest{
		path:        path,
		function:    "main",
		enableTrace: true,
	}, validator.NewProgramValidator())
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	tx, err := types.DecodeTransaction(b.sent[0])
	require.NoError(t, err)
	assert.Equal(t, types.FunctionExecution{
		Program:     testProgram,
		Function:    "main",
		ProgramName: "fibonacci.json",
		EnableTrace: true,
	}, tx.Type)

	// the embedded hash is the one a node recomputes
	hash, err := validator.NewProgramValidator().CanonicalHash(tx.Type)
	require.NoError(t, err)
	assert.Equal(t, hash, tx.Hash)

	assert.Equal(t, "Sent transaction (ID "+tx.ID+") successfully. Hash: "+tx.Hash+"\n", out.String())
}

func TestSubmitFailures(t *testing.T) {
	path := writeProgram(t)

	tests := []struct {
		name    string
		path    string
		b       *fakeBroadcaster
		hasher  types.CanonicalHasher
		wantErr string
		sent    int
	}{
		{
			name:    "missing file",
			path:    filepath.Join(t.TempDir(), "nope.json"),
			b:       &fakeBroadcaster{},
			hasher:  mock.FixedHasher("h"),
			wantErr: "reading program",
		},
		{
			name:    "hasher rejects the program",
			path:    path,
			b:       &fakeBroadcaster{},
			hasher:  mock.FailingHasher(errors.New("bad program")),
			wantErr: "bad program",
		},
		{
			name:    "broadcast fails",
			path:    path,
			b:       &fakeBroadcaster{err: errors.New("connection refused")},
			hasher:  mock.FixedHasher("h"),
			wantErr: "Error sending out transaction: connection refused",
			sent:    1,
		},
		{
			name: "node rejects the transaction",
			path: path,
			b: &fakeBroadcaster{res: &ctypes.ResultBroadcastTx{
				Code: types.CodeTypeOverloaded,
				Log:  "lane overloaded",
			}},
			hasher:  mock.FixedHasher("h"),
			wantErr: "Error executing transaction 3: lane overloaded",
			sent:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			err := runSubmit(context.Background(), out, tc.b, log.NewNopLogger(), submitRequest{
				path:     tc.path,
				function: "main",
			}, tc.hasher)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Len(t, tc.b.sent, tc.sent)
			assert.Empty(t, out.String())
		})
	}
}
