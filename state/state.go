package state

import (
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// State is what the application reports to the consensus engine on Info.
type State struct {
	LastBlockHeight uint64
	// LastAppHash is empty until the first commit after a start.
	LastAppHash tmbytes.HexBytes
}

func (s State) Copy() State {
	hash := make([]byte, len(s.LastAppHash))
	copy(hash, s.LastAppHash)
	return State{
		LastBlockHeight: s.LastBlockHeight,
		LastAppHash:     hash,
	}
}

func (s State) String() string {
	return fmt.Sprintf("State{height:%d app_hash:%v}", s.LastBlockHeight, s.LastAppHash)
}
