package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "github.com/kariy/starkmint/node"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding a starkmint node
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("proxy_app", config.ProxyApp, "address the consensus engine connects to")
	cmd.Flags().Int("read_buffer_size", config.ReadBufferSize, "size of the per connection read buffer, in bytes")
	cmd.Flags().String("height_backend", config.HeightBackend, `where the block height is kept: "file" or "goleveldb"`)
	cmd.Flags().String("rpc.laddr", config.RPC.ListenAddress, "status and metrics RPC listen address, empty to disable")
	cmd.Flags().Bool("verbose", false, "log everything at debug level")
	cmd.Flags().Bool("quiet", false, "disable logging")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
// It can be used with a custom node provider.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the ABCI application",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeLogger := logger
			switch {
			case viper.GetBool("quiet"):
				nodeLogger = log.NewNopLogger()
			case viper.GetBool("verbose"):
				nodeLogger = log.NewFilter(log.NewTMLogger(log.NewSyncWriter(cmd.OutOrStdout())), log.AllowDebug())
			}

			n, err := nodeProvider(config, nodeLogger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			nodeLogger.Info("Started node", "proxy_app", config.ProxyApp)

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(nodeLogger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						nodeLogger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
