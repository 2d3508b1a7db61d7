package state

import (
	"fmt"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/kariy/starkmint/libs/metric"
	"github.com/kariy/starkmint/store"
	"github.com/kariy/starkmint/types"
)

const (
	integrityCheckFailedMsg = "Error delivering transaction. Integrity check failed."
	executionFailedMsg      = "Error delivering transaction: %v"
)

type blockStep uint8

const (
	stepIdle blockStep = iota
	stepInBlock
	stepEnded
)

func (s blockStep) String() string {
	switch s {
	case stepIdle:
		return "Idle"
	case stepInBlock:
		return "InBlock"
	case stepEnded:
		return "Ended"
	default:
		return fmt.Sprintf("blockStep(%d)", uint8(s))
	}
}

// BlockExecutorOption sets an optional parameter on the BlockExecutor.
type BlockExecutorOption func(*BlockExecutor)

// BlockExecutorWithMetrics records block figures in r.
func BlockExecutorWithMetrics(r metrics.Registry) BlockExecutorOption {
	return func(exec *BlockExecutor) {
		exec.metric = newBlockMetric(r)
	}
}

// BlockExecutorWithClock replaces time.Now, used for block timings.
func BlockExecutorWithClock(now func() time.Time) BlockExecutorOption {
	return func(exec *BlockExecutor) {
		exec.now = now
	}
}

// BlockExecutor drives one block at a time through
// BeginBlock -> DeliverTx* -> EndBlock -> Commit.
// The consensus lane is its only caller for those four; CheckTx and
// LastState may be called concurrently from other lanes.
type BlockExecutor struct {
	heightStore store.HeightStore
	hasher      types.CanonicalHasher
	acc         *AppHashAccumulator

	logger log.Logger
	metric *blockMetric
	now    func() time.Time

	mtx            sync.Mutex
	step           blockStep
	txCount        uint64
	blockStart     time.Time
	lastBlockStart time.Time
	lastAppHash    []byte
}

func NewBlockExecutor(
	heightStore store.HeightStore,
	hasher types.CanonicalHasher,
	options ...BlockExecutorOption,
) *BlockExecutor {
	exec := &BlockExecutor{
		heightStore: heightStore,
		hasher:      hasher,
		acc:         NewAppHashAccumulator(),
		logger:      log.NewNopLogger(),
		now:         time.Now,
	}
	for _, option := range options {
		option(exec)
	}
	if exec.metric == nil {
		exec.metric = newBlockMetric(metrics.NewRegistry())
	}
	return exec
}

func (exec *BlockExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// Metric exposes the block figures for the metric set.
func (exec *BlockExecutor) Metric() metric.MetricItem {
	return exec.metric
}

// LastState returns the durable height and the commitment returned by the
// last Commit of this process.
func (exec *BlockExecutor) LastState() (State, error) {
	height, err := exec.heightStore.Read()
	if err != nil {
		return State{}, fatal(err, "reading height")
	}

	exec.mtx.Lock()
	defer exec.mtx.Unlock()
	return State{
		LastBlockHeight: height,
		LastAppHash:     exec.lastAppHash,
	}.Copy(), nil
}

// BeginBlock opens a new block and resets the per-block counters.
func (exec *BlockExecutor) BeginBlock() error {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if exec.step != stepIdle {
		return errUnexpectedStep("BeginBlock", exec.step)
	}

	now := exec.now()
	if !exec.lastBlockStart.IsZero() {
		exec.logger.Info("begin block", "ms_since_last_block", now.Sub(exec.lastBlockStart).Milliseconds())
	} else {
		exec.logger.Info("begin block")
	}
	exec.lastBlockStart = now
	exec.blockStart = now
	exec.txCount = 0
	exec.step = stepInBlock
	return nil
}

// CheckTx only decodes the transaction. It never touches block state.
func (exec *BlockExecutor) CheckTx(raw []byte) (abcitypes.ResponseCheckTx, error) {
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return abcitypes.ResponseCheckTx{}, fatal(err, "decoding transaction in CheckTx")
	}

	logger := exec.logger.With("tx_id", tx.ID)
	if err := tx.Type.Accept(checkTxLogger{logger}); err != nil {
		return abcitypes.ResponseCheckTx{}, fatal(err, "inspecting transaction")
	}
	return abcitypes.ResponseCheckTx{Code: types.CodeTypeOK}, nil
}

// DeliverTx verifies the transaction's hash and, when it matches, folds it
// into the app hash. Rejections are reported as response codes.
func (exec *BlockExecutor) DeliverTx(raw []byte) (abcitypes.ResponseDeliverTx, error) {
	if err := exec.expectStep("DeliverTx", stepInBlock); err != nil {
		return abcitypes.ResponseDeliverTx{}, err
	}

	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return abcitypes.ResponseDeliverTx{}, fatal(err, "decoding transaction in DeliverTx")
	}

	// the hasher runs unlocked: LastState must never wait on the validator
	hash, err := exec.hasher.CanonicalHash(tx.Type)
	if err != nil {
		msg := fmt.Sprintf(executionFailedMsg, err)
		exec.logger.Error("transaction failed", "tx_id", tx.ID, "err", err)
		return abcitypes.ResponseDeliverTx{
			Code: types.CodeTypeExecutionFailed,
			Log:  msg,
			Info: msg,
		}, nil
	}

	if hash != tx.Hash {
		exec.logger.Error("integrity check failed", "tx_id", tx.ID, "expected", tx.Hash, "computed", hash)
		return abcitypes.ResponseDeliverTx{
			Code: types.CodeTypeIntegrityCheckFailed,
			Log:  integrityCheckFailedMsg,
			Info: integrityCheckFailedMsg,
		}, nil
	}

	emitter := &eventEmitter{}
	if err := tx.Type.Accept(emitter); err != nil {
		return abcitypes.ResponseDeliverTx{}, fatal(err, "building transaction events")
	}

	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if exec.step != stepInBlock {
		return abcitypes.ResponseDeliverTx{}, errUnexpectedStep("DeliverTx", exec.step)
	}
	if err := exec.acc.Fold([]byte(hash)); err != nil {
		return abcitypes.ResponseDeliverTx{}, fatal(err, "folding transaction hash")
	}
	exec.txCount++

	events := append([]abcitypes.Event{{
		Type: "app",
		Attributes: []abcitypes.EventAttribute{
			{Key: []byte("tx_id"), Value: []byte(hash), Index: true},
		},
	}}, emitter.events...)

	exec.logger.Debug("delivered transaction", "tx_id", tx.ID, "hash", hash)
	return abcitypes.ResponseDeliverTx{
		Code:   types.CodeTypeOK,
		Data:   []byte(hash),
		Events: events,
	}, nil
}

func (exec *BlockExecutor) expectStep(call string, step blockStep) error {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if exec.step != step {
		return errUnexpectedStep(call, exec.step)
	}
	return nil
}

// EndBlock closes the block and reports its throughput.
func (exec *BlockExecutor) EndBlock() (abcitypes.ResponseEndBlock, error) {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if exec.step != stepInBlock {
		return abcitypes.ResponseEndBlock{}, errUnexpectedStep("EndBlock", exec.step)
	}

	elapsed := exec.now().Sub(exec.blockStart)
	var tps float64
	if elapsed > 0 {
		tps = float64(exec.txCount) / elapsed.Seconds()
	}
	exec.metric.MarkBlock(exec.txCount, elapsed.Milliseconds(), tps)
	exec.logger.Info("end block",
		"txs", exec.txCount,
		"elapsed_ms", elapsed.Milliseconds(),
		"tps", tps)

	exec.step = stepEnded
	return abcitypes.ResponseEndBlock{}, nil
}

// Commit persists the next height and returns the accumulated app hash.
func (exec *BlockExecutor) Commit() (abcitypes.ResponseCommit, error) {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if exec.step != stepEnded {
		return abcitypes.ResponseCommit{}, errUnexpectedStep("Commit", exec.step)
	}

	appHash, err := exec.acc.Snapshot()
	if err != nil {
		return abcitypes.ResponseCommit{}, fatal(err, "computing app hash")
	}

	height, err := exec.heightStore.IncrementAndPersist()
	if err != nil {
		return abcitypes.ResponseCommit{}, fatal(err, "persisting height")
	}

	exec.lastAppHash = appHash
	exec.step = stepIdle
	exec.metric.MarkHeight(height)
	exec.logger.Info("committed", "height", height, "app_hash", fmt.Sprintf("%X", appHash))

	return abcitypes.ResponseCommit{Data: appHash, RetainHeight: 0}, nil
}

// ===== per variant handling =====

type checkTxLogger struct {
	logger log.Logger
}

func (l checkTxLogger) VisitFunctionExecution(fe types.FunctionExecution) error {
	l.logger.Info("received transaction",
		"function", fe.Function,
		"program_name", fe.ProgramName)
	return nil
}

type eventEmitter struct {
	events []abcitypes.Event
}

func (e *eventEmitter) VisitFunctionExecution(fe types.FunctionExecution) error {
	e.events = append(e.events, abcitypes.Event{
		Type: "function",
		Attributes: []abcitypes.EventAttribute{
			{Key: []byte("function"), Value: []byte(fe.Function), Index: true},
		},
	})
	return nil
}
