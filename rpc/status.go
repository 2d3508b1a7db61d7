package rpc

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultAppStatus struct {
	LastHeight  uint64           `json:"last_height"`
	LastAppHash tmbytes.HexBytes `json:"last_app_hash"`
}

// AppStatus returns the committed height and the last app hash.
func AppStatus(ctx *rpctypes.Context) (*ResultAppStatus, error) {
	st, err := env.State.LastState()
	if err != nil {
		return nil, err
	}
	return &ResultAppStatus{
		LastHeight:  st.LastBlockHeight,
		LastAppHash: st.LastAppHash,
	}, nil
}
