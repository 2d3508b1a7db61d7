package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	cfg "github.com/kariy/starkmint/config"
	nm "github.com/kariy/starkmint/node"
)

// InitFilesCmd initialises the home directory and the height record.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the home directory and the block height",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	cfg.EnsureRoot(config)
	logger.Info("Found config file", "path", config.ConfigFile())

	height, closer, err := nm.OpenHeightStore(config, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	h, err := height.ReadOrInitialize()
	if err != nil {
		return fmt.Errorf("reading block height: %w", err)
	}
	logger.Info("Block height ready", "backend", config.HeightBackend, "height", h)
	return nil
}
