package commands

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"

	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator"
)

const (
	defaultSequencerURL = "http://127.0.0.1:26657"
	sequencerURLEnv     = "SEQUENCER_URL"
)

// Broadcaster sends an encoded transaction to a consensus node and waits
// for its CheckTx answer.
type Broadcaster interface {
	BroadcastTxSync(ctx context.Context, tx tmtypes.Tx) (*ctypes.ResultBroadcastTx, error)
}

var (
	submitURL         string
	submitEnableTrace bool
	submitVerbose     bool
)

func init() {
	url := os.Getenv(sequencerURLEnv)
	if url == "" {
		url = defaultSequencerURL
	}
	SubmitCmd.Flags().StringVar(&submitURL, "url", url, "consensus node RPC address, also read from $"+sequencerURLEnv)
	SubmitCmd.Flags().BoolVar(&submitEnableTrace, "enable-trace", true, "ask for an execution trace")
	SubmitCmd.Flags().BoolVar(&submitVerbose, "verbose", false, "log the request")
}

// SubmitCmd wraps a program file into a transaction and broadcasts it.
var SubmitCmd = &cobra.Command{
	Use:   "submit [program file] [function]",
	Short: "Send a program execution to a starkmint node",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		submitLogger := log.NewNopLogger()
		if submitVerbose {
			submitLogger = log.NewFilter(log.NewTMLogger(log.NewSyncWriter(cmd.ErrOrStderr())), log.AllowDebug())
		}

		client, err := rpchttp.New(submitURL, "/websocket")
		if err != nil {
			tmos.Exit(fmt.Sprintf("error: %v", err))
		}

		err = runSubmit(context.Background(), cmd.OutOrStdout(), client, submitLogger, submitRequest{
			path:        args[0],
			function:    args[1],
			enableTrace: submitEnableTrace,
		}, validator.NewProgramValidator())
		if err != nil {
			tmos.Exit(fmt.Sprintf("error: %v", err))
		}
	},
}

type submitRequest struct {
	path        string
	function    string
	enableTrace bool
}

func runSubmit(
	ctx context.Context,
	out io.Writer,
	b Broadcaster,
	logger log.Logger,
	req submitRequest,
	hasher types.CanonicalHasher,
) error {
	program, err := ioutil.ReadFile(req.path)
	if err != nil {
		return errors.Wrapf(err, "reading program %s", req.path)
	}

	tx, err := types.NewTransaction(types.FunctionExecution{
		Program:     string(program),
		Function:    req.function,
		ProgramName: filepath.Base(req.path),
		EnableTrace: req.enableTrace,
	}, hasher)
	if err != nil {
		return err
	}

	bz, err := types.EncodeTransaction(tx)
	if err != nil {
		return err
	}
	logger.Debug("broadcasting transaction", "tx_id", tx.ID, "hash", tx.Hash, "size", len(bz))

	res, err := b.BroadcastTxSync(ctx, bz)
	if err != nil {
		return errors.Wrap(err, "Error sending out transaction")
	}
	if res.Code != types.CodeTypeOK {
		return errors.Errorf("Error executing transaction %d: %s", res.Code, res.Log)
	}

	fmt.Fprintf(out, "Sent transaction (ID %s) successfully. Hash: %s\n", tx.ID, tx.Hash)
	return nil
}
