package node

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	abcicli "github.com/tendermint/tendermint/abci/client"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"

	cfg "github.com/kariy/starkmint/config"
	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator"
)

const testProgram = `{"identifiers": {"__main__.main": {}}}`

func testNodeConfig(t *testing.T, backend string) *cfg.Config {
	root := t.TempDir()
	config := cfg.TestConfig().SetRoot(root)
	config.ProxyApp = "unix://" + filepath.Join(root, "abci.sock")
	config.HeightBackend = backend
	config.RPC.ListenAddress = ""
	cfg.EnsureRoot(config)
	return config
}

func newTestNode(t *testing.T, config *cfg.Config) *Node {
	t.Helper()
	n, err := NewNode(config, validator.NewProgramValidator(), log.TestingLogger(),
		WithFatalHandler(func(err error) { t.Errorf("unexpected fatal error: %v", err) }))
	require.NoError(t, err)
	return n
}

func connect(t *testing.T, config *cfg.Config) abcicli.Client {
	t.Helper()
	client := abcicli.NewSocketClient(config.ProxyApp, true)
	client.SetLogger(log.TestingLogger())
	require.NoError(t, client.Start())
	return client
}

func commitBlock(t *testing.T, client abcicli.Client, txs ...[]byte) []byte {
	t.Helper()
	_, err := client.BeginBlockSync(abcitypes.RequestBeginBlock{})
	require.NoError(t, err)
	for _, tx := range txs {
		res, err := client.DeliverTxSync(abcitypes.RequestDeliverTx{Tx: tx})
		require.NoError(t, err)
		require.Equal(t, types.CodeTypeOK, res.Code, res.Log)
	}
	_, err = client.EndBlockSync(abcitypes.RequestEndBlock{})
	require.NoError(t, err)
	res, err := client.CommitSync()
	require.NoError(t, err)
	return res.Data
}

func TestNodeHeightSurvivesRestart(t *testing.T) {
	for _, backend := range []string{cfg.HeightBackendFile, cfg.HeightBackendGoLevelDB} {
		t.Run(backend, func(t *testing.T) {
			config := testNodeConfig(t, backend)

			tx, err := types.NewTransaction(types.FunctionExecution{
				Program:  testProgram,
				Function: "main",
			}, validator.NewProgramValidator())
			require.NoError(t, err)
			bz, err := types.EncodeTransaction(tx)
			require.NoError(t, err)

			n := newTestNode(t, config)
			require.NoError(t, n.Start())
			client := connect(t, config)

			appHash := commitBlock(t, client, bz)
			assert.NotEmpty(t, appHash)
			commitBlock(t, client)

			require.NoError(t, client.Stop())
			require.NoError(t, n.Stop())

			restarted := newTestNode(t, config)
			require.NoError(t, restarted.Start())
			defer restarted.Stop()
			client = connect(t, config)
			defer client.Stop()

			info, err := client.InfoSync(abcitypes.RequestInfo{})
			require.NoError(t, err)
			assert.EqualValues(t, 2, info.LastBlockHeight)
			assert.Empty(t, info.LastBlockAppHash)

			metrics, err := restarted.MetricSet().JSONStrings("")
			require.NoError(t, err)
			assert.Contains(t, metrics, "block")
			assert.Contains(t, metrics, "lanes")
		})
	}
}

func TestNodeRefusesMalformedHeight(t *testing.T) {
	config := testNodeConfig(t, cfg.HeightBackendFile)
	require.NoError(t, ioutil.WriteFile(config.HeightFilePath(), []byte("garbage"), 0600))

	n := newTestNode(t, config)
	err := n.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed height record")
}

func TestNewNodeValidatesConfig(t *testing.T) {
	config := testNodeConfig(t, "rocksdb")
	_, err := NewNode(config, validator.NewProgramValidator(), log.TestingLogger())
	assert.Error(t, err)
}

func TestNodeStopJoinsServices(t *testing.T) {
	defer leaktest.Check(t)()

	config := testNodeConfig(t, cfg.HeightBackendFile)
	config.RPC.ListenAddress = "tcp://127.0.0.1:0"

	n := newTestNode(t, config)
	require.NoError(t, n.Start())
	require.NotNil(t, n.RPCAddr())

	client := connect(t, config)
	commitBlock(t, client)
	require.NoError(t, client.Stop())

	require.NoError(t, n.Stop())
}
