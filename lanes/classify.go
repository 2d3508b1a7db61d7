package lanes

import (
	"fmt"

	abcitypes "github.com/tendermint/tendermint/abci/types"
)

// Lane names the queue a request is scheduled on.
type Lane uint8

const (
	// LaneNone is used for Flush, which the transport answers itself.
	LaneNone Lane = iota
	LaneConsensus
	LaneMempool
	LaneInfo
	LaneSnapshot
)

func (l Lane) String() string {
	switch l {
	case LaneNone:
		return "none"
	case LaneConsensus:
		return "consensus"
	case LaneMempool:
		return "mempool"
	case LaneInfo:
		return "info"
	case LaneSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("lane(%d)", uint8(l))
	}
}

// Classify returns the lane of req.
func Classify(req *abcitypes.Request) Lane {
	switch req.Value.(type) {
	case *abcitypes.Request_InitChain,
		*abcitypes.Request_BeginBlock,
		*abcitypes.Request_DeliverTx,
		*abcitypes.Request_EndBlock,
		*abcitypes.Request_Commit:
		return LaneConsensus
	case *abcitypes.Request_CheckTx:
		return LaneMempool
	case *abcitypes.Request_Info,
		*abcitypes.Request_Query,
		*abcitypes.Request_Echo,
		*abcitypes.Request_SetOption:
		return LaneInfo
	case *abcitypes.Request_ListSnapshots,
		*abcitypes.Request_OfferSnapshot,
		*abcitypes.Request_LoadSnapshotChunk,
		*abcitypes.Request_ApplySnapshotChunk:
		return LaneSnapshot
	default:
		return LaneNone
	}
}
