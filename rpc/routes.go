package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	"app_status": rpc.NewRPCFunc(AppStatus, ""),
	"metrics":    rpc.NewRPCFunc(JSONMetrics, "label"),
}
