package app

import (
	"context"
	"fmt"

	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/kariy/starkmint/state"
	"github.com/kariy/starkmint/types"
)

const (
	AppName    = "starkmint"
	AppVersion = "0.1.0"

	ProtocolVersion uint64 = 1

	queryNotImplementedMsg = "Error running query: query hook is not implemented"
	setOptionMsg           = "N/A"
)

// FatalHandler is called once for every fatal error before the request that
// caused it is answered with an exception.
type FatalHandler func(err error)

// Application answers every ABCI request. Block requests are forwarded to the
// BlockExecutor; the rest are answered here.
type Application struct {
	exec    *state.BlockExecutor
	logger  log.Logger
	onFatal FatalHandler
}

var _ abcitypes.Application = (*Application)(nil)

func NewApplication(exec *state.BlockExecutor, logger log.Logger) *Application {
	app := &Application{
		exec:   exec,
		logger: logger.With("module", "app"),
	}
	app.onFatal = app.exitOnFatal
	return app
}

// SetFatalHandler replaces the default handler, which terminates the process.
func (app *Application) SetFatalHandler(h FatalHandler) {
	app.onFatal = h
}

func (app *Application) exitOnFatal(err error) {
	app.logger.Error("fatal error, shutting down", "err", err)
	tmos.Exit(err.Error())
}

func (app *Application) fatal(err error) {
	if !state.IsFatal(err) {
		err = state.FatalError{Err: err}
	}
	app.onFatal(err)
}

// Dispatch maps a request to its response. Every request kind is answered;
// fatal errors are reported to the fatal handler and answered with an
// exception.
func (app *Application) Dispatch(_ context.Context, req *abcitypes.Request) *abcitypes.Response {
	res, err := app.dispatch(req)
	if err != nil {
		app.fatal(err)
		res = abcitypes.ToResponseException(err.Error())
	}
	app.logger.Debug("handled request", "req", req, "res", res)
	return res
}

func (app *Application) dispatch(req *abcitypes.Request) (*abcitypes.Response, error) {
	switch r := req.Value.(type) {
	case *abcitypes.Request_Echo:
		return abcitypes.ToResponseEcho(r.Echo.Message), nil
	case *abcitypes.Request_Flush:
		return abcitypes.ToResponseFlush(), nil
	case *abcitypes.Request_Info:
		res, err := app.info(*r.Info)
		if err != nil {
			return nil, err
		}
		return abcitypes.ToResponseInfo(res), nil
	case *abcitypes.Request_SetOption:
		return abcitypes.ToResponseSetOption(app.SetOption(*r.SetOption)), nil
	case *abcitypes.Request_Query:
		return abcitypes.ToResponseQuery(app.Query(*r.Query)), nil
	case *abcitypes.Request_CheckTx:
		res, err := app.exec.CheckTx(r.CheckTx.Tx)
		if err != nil {
			return nil, err
		}
		return abcitypes.ToResponseCheckTx(res), nil
	case *abcitypes.Request_InitChain:
		return abcitypes.ToResponseInitChain(app.InitChain(*r.InitChain)), nil
	case *abcitypes.Request_BeginBlock:
		if err := app.exec.BeginBlock(); err != nil {
			return nil, err
		}
		return abcitypes.ToResponseBeginBlock(abcitypes.ResponseBeginBlock{}), nil
	case *abcitypes.Request_DeliverTx:
		res, err := app.exec.DeliverTx(r.DeliverTx.Tx)
		if err != nil {
			return nil, err
		}
		return abcitypes.ToResponseDeliverTx(res), nil
	case *abcitypes.Request_EndBlock:
		res, err := app.exec.EndBlock()
		if err != nil {
			return nil, err
		}
		return abcitypes.ToResponseEndBlock(res), nil
	case *abcitypes.Request_Commit:
		res, err := app.exec.Commit()
		if err != nil {
			return nil, err
		}
		return abcitypes.ToResponseCommit(res), nil
	case *abcitypes.Request_ListSnapshots:
		return abcitypes.ToResponseListSnapshots(app.ListSnapshots(*r.ListSnapshots)), nil
	case *abcitypes.Request_OfferSnapshot:
		return abcitypes.ToResponseOfferSnapshot(app.OfferSnapshot(*r.OfferSnapshot)), nil
	case *abcitypes.Request_LoadSnapshotChunk:
		return abcitypes.ToResponseLoadSnapshotChunk(app.LoadSnapshotChunk(*r.LoadSnapshotChunk)), nil
	case *abcitypes.Request_ApplySnapshotChunk:
		return abcitypes.ToResponseApplySnapshotChunk(app.ApplySnapshotChunk(*r.ApplySnapshotChunk)), nil
	default:
		return nil, fmt.Errorf("unknown request %T", req.Value)
	}
}

func (app *Application) info(req abcitypes.RequestInfo) (abcitypes.ResponseInfo, error) {
	app.logger.Debug("info request",
		"tendermint_version", req.Version,
		"block_version", req.BlockVersion,
		"p2p_version", req.P2PVersion)

	st, err := app.exec.LastState()
	if err != nil {
		return abcitypes.ResponseInfo{}, err
	}
	return abcitypes.ResponseInfo{
		Data:             AppName,
		Version:          AppVersion,
		AppVersion:       ProtocolVersion,
		LastBlockHeight:  int64(st.LastBlockHeight),
		LastBlockAppHash: st.LastAppHash,
	}, nil
}

// ===== abcitypes.Application =====

func (app *Application) Info(req abcitypes.RequestInfo) abcitypes.ResponseInfo {
	res, err := app.info(req)
	if err != nil {
		app.fatal(err)
	}
	return res
}

func (app *Application) SetOption(abcitypes.RequestSetOption) abcitypes.ResponseSetOption {
	return abcitypes.ResponseSetOption{Code: types.CodeTypeOK, Log: setOptionMsg, Info: setOptionMsg}
}

// Query has no query protocol to serve yet.
func (app *Application) Query(abcitypes.RequestQuery) abcitypes.ResponseQuery {
	return abcitypes.ResponseQuery{
		Code: types.CodeTypeQueryNotImplemented,
		Log:  queryNotImplementedMsg,
		Info: queryNotImplementedMsg,
	}
}

func (app *Application) CheckTx(req abcitypes.RequestCheckTx) abcitypes.ResponseCheckTx {
	res, err := app.exec.CheckTx(req.Tx)
	if err != nil {
		app.fatal(err)
	}
	return res
}

func (app *Application) InitChain(abcitypes.RequestInitChain) abcitypes.ResponseInitChain {
	return abcitypes.ResponseInitChain{}
}

func (app *Application) BeginBlock(abcitypes.RequestBeginBlock) abcitypes.ResponseBeginBlock {
	if err := app.exec.BeginBlock(); err != nil {
		app.fatal(err)
	}
	return abcitypes.ResponseBeginBlock{}
}

func (app *Application) DeliverTx(req abcitypes.RequestDeliverTx) abcitypes.ResponseDeliverTx {
	res, err := app.exec.DeliverTx(req.Tx)
	if err != nil {
		app.fatal(err)
	}
	return res
}

func (app *Application) EndBlock(abcitypes.RequestEndBlock) abcitypes.ResponseEndBlock {
	res, err := app.exec.EndBlock()
	if err != nil {
		app.fatal(err)
	}
	return res
}

func (app *Application) Commit() abcitypes.ResponseCommit {
	res, err := app.exec.Commit()
	if err != nil {
		app.fatal(err)
	}
	return res
}

func (app *Application) ListSnapshots(abcitypes.RequestListSnapshots) abcitypes.ResponseListSnapshots {
	return abcitypes.ResponseListSnapshots{}
}

func (app *Application) OfferSnapshot(abcitypes.RequestOfferSnapshot) abcitypes.ResponseOfferSnapshot {
	return abcitypes.ResponseOfferSnapshot{}
}

func (app *Application) LoadSnapshotChunk(abcitypes.RequestLoadSnapshotChunk) abcitypes.ResponseLoadSnapshotChunk {
	return abcitypes.ResponseLoadSnapshotChunk{}
}

func (app *Application) ApplySnapshotChunk(abcitypes.RequestApplySnapshotChunk) abcitypes.ResponseApplySnapshotChunk {
	return abcitypes.ResponseApplySnapshotChunk{}
}
