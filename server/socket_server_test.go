package server

import (
	"bufio"
	"context"
	"crypto/sha256"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	abcicli "github.com/tendermint/tendermint/abci/client"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"

	"github.com/kariy/starkmint/app"
	cfg "github.com/kariy/starkmint/config"
	"github.com/kariy/starkmint/lanes"
	"github.com/kariy/starkmint/state"
	"github.com/kariy/starkmint/store"
	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator/mock"
)

type blockingDispatcher struct {
	mtx     sync.Mutex
	seen    int
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(_ context.Context, req *abcitypes.Request) *abcitypes.Response {
	if r, ok := req.Value.(*abcitypes.Request_DeliverTx); ok {
		d.entered <- struct{}{}
		<-d.release
		return abcitypes.ToResponseDeliverTx(abcitypes.ResponseDeliverTx{Data: r.DeliverTx.Tx})
	}

	d.mtx.Lock()
	d.seen++
	d.mtx.Unlock()
	if r, ok := req.Value.(*abcitypes.Request_Echo); ok {
		return abcitypes.ToResponseEcho(r.Echo.Message)
	}
	return abcitypes.ToResponseException("unexpected")
}

func (d *blockingDispatcher) count() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.seen
}

func socketAddr(t *testing.T) string {
	return "unix://" + filepath.Join(t.TempDir(), "abci.sock")
}

func startServer(t *testing.T, addr string, d lanes.Dispatcher) (*SocketServer, *lanes.Topology) {
	t.Helper()
	topo := lanes.NewTopology(cfg.TestLanesConfig(), d, nil)
	topo.SetLogger(log.TestingLogger())
	require.NoError(t, topo.Start())

	srv := NewSocketServer(addr, topo, cfg.TestBaseConfig().ReadBufferSize)
	srv.SetLogger(log.TestingLogger())
	require.NoError(t, srv.Start())
	return srv, topo
}

func TestResponsesKeepRequestOrder(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	d := &blockingDispatcher{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	addr := socketAddr(t)
	srv, topo := startServer(t, addr, d)
	defer topo.Stop()
	defer srv.Stop()

	conn, err := net.Dial("unix", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	w := bufio.NewWriter(conn)
	for _, req := range []*abcitypes.Request{
		abcitypes.ToRequestDeliverTx(abcitypes.RequestDeliverTx{Tx: []byte("tx")}),
		abcitypes.ToRequestEcho("hello"),
		abcitypes.ToRequestFlush(),
	} {
		require.NoError(t, abcitypes.WriteMessage(req, w))
	}
	require.NoError(t, w.Flush())

	// the echo is answered while the block request is still running
	<-d.entered
	require.Eventually(t, func() bool { return d.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	close(d.release)

	r := bufio.NewReader(conn)
	var res abcitypes.Response
	require.NoError(t, abcitypes.ReadMessage(r, &res))
	assert.Equal(t, []byte("tx"), res.GetDeliverTx().Data)
	res = abcitypes.Response{}
	require.NoError(t, abcitypes.ReadMessage(r, &res))
	assert.Equal(t, "hello", res.GetEcho().Message)
	res = abcitypes.Response{}
	require.NoError(t, abcitypes.ReadMessage(r, &res))
	assert.NotNil(t, res.GetFlush())
}

func TestServerWithSocketClient(t *testing.T) {
	hs := store.NewDBHeightStoreWithDB(memdb.NewDB(), log.TestingLogger())
	_, err := hs.ReadOrInitialize()
	require.NoError(t, err)
	exec := state.NewBlockExecutor(hs, mock.FixedHasher("hash"))
	exec.SetLogger(log.TestingLogger())
	application := app.NewApplication(exec, log.TestingLogger())
	application.SetFatalHandler(func(err error) { t.Errorf("unexpected fatal error: %v", err) })

	addr := socketAddr(t)
	srv, topo := startServer(t, addr, application)
	defer topo.Stop()
	defer srv.Stop()

	client := abcicli.NewSocketClient(addr, true)
	client.SetLogger(log.TestingLogger())
	require.NoError(t, client.Start())
	defer client.Stop()

	echo, err := client.EchoSync("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", echo.Message)

	info, err := client.InfoSync(abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, "starkmint", info.Data)
	assert.EqualValues(t, 0, info.LastBlockHeight)

	tx, err := types.EncodeTransaction(&types.Transaction{
		ID:   "1",
		Hash: "hash",
		Type: types.FunctionExecution{Program: "main", Function: "main"},
	})
	require.NoError(t, err)

	check, err := client.CheckTxSync(abcitypes.RequestCheckTx{Tx: tx})
	require.NoError(t, err)
	assert.Equal(t, types.CodeTypeOK, check.Code)

	_, err = client.BeginBlockSync(abcitypes.RequestBeginBlock{})
	require.NoError(t, err)
	deliver, err := client.DeliverTxSync(abcitypes.RequestDeliverTx{Tx: tx})
	require.NoError(t, err)
	assert.Equal(t, types.CodeTypeOK, deliver.Code)
	_, err = client.EndBlockSync(abcitypes.RequestEndBlock{Height: 1})
	require.NoError(t, err)
	commit, err := client.CommitSync()
	require.NoError(t, err)

	expected := sha256.Sum256([]byte("hash"))
	assert.Equal(t, expected[:], commit.Data)

	info, err = client.InfoSync(abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.LastBlockHeight)
	assert.Equal(t, expected[:], info.LastBlockAppHash)

	query, err := client.QuerySync(abcitypes.RequestQuery{})
	require.NoError(t, err)
	assert.Equal(t, types.CodeTypeQueryNotImplemented, query.Code)
}
