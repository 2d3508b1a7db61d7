package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	nm "github.com/kariy/starkmint/node"
)

// ShowHeightCmd prints the last committed block height.
var ShowHeightCmd = &cobra.Command{
	Use:     "height",
	Aliases: []string{"show-height", "show_height"},
	Short:   "Show the last committed block height",
	RunE:    showHeight,
}

func showHeight(cmd *cobra.Command, args []string) error {
	height, closer, err := nm.OpenHeightStore(config, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	h, err := height.Read()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), h)
	return nil
}
