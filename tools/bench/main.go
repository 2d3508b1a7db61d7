package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator"
)

var (
	target            string
	connections       int
	rate              int
	duration          time.Duration
	function          string
	broadcastTxMethod string
	verbose           bool
)

var rootCmd = &cobra.Command{
	Use:   "bench [program files...]",
	Short: "Load a consensus node running starkmint with program executions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBench,
}

func init() {
	rootCmd.Flags().StringVar(&target, "target", "127.0.0.1:26657", "host:port of the consensus node RPC")
	rootCmd.Flags().IntVar(&connections, "connections", 1, "websocket connections to open")
	rootCmd.Flags().IntVar(&rate, "rate", 100, "transactions per second per connection")
	rootCmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to send, zero for until interrupted")
	rootCmd.Flags().StringVar(&function, "function", "main", "function to execute in every program")
	rootCmd.Flags().StringVar(&broadcastTxMethod, "broadcast_tx_method", "broadcast_tx_sync", "broadcast_tx_sync or broadcast_tx_async")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log every batch")
}

func loadPrograms(paths []string, function string) ([]types.FunctionExecution, error) {
	programs := make([]types.FunctionExecution, 0, len(paths))
	for _, path := range paths {
		bz, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading program %s", path)
		}
		programs = append(programs, types.FunctionExecution{
			Program:     string(bz),
			Function:    function,
			ProgramName: filepath.Base(path),
			EnableTrace: true,
		})
	}
	return programs, nil
}

func runBench(cmd *cobra.Command, args []string) error {
	switch broadcastTxMethod {
	case "broadcast_tx_sync", "broadcast_tx_async":
	default:
		return errors.Errorf("unsupported broadcast method %q", broadcastTxMethod)
	}

	programs, err := loadPrograms(args, function)
	if err != nil {
		return err
	}

	logger := log.NewNopLogger()
	if verbose {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stderr))
	}

	t := newTransacter(target, connections, rate, broadcastTxMethod, programs, validator.NewProgramValidator())
	t.SetLogger(logger)
	if err := t.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	var deadline <-chan time.Time
	if duration > 0 {
		deadline = time.After(duration)
	}
	select {
	case <-sigs:
	case <-deadline:
	}
	t.Stop()

	out, err := jsoniter.MarshalToString(t.result())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
