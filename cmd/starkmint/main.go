package main

import (
	"os"
	"path/filepath"

	"github.com/tendermint/tendermint/libs/cli"

	cmd "github.com/kariy/starkmint/cmd/commands"
	cfg "github.com/kariy/starkmint/config"
	nm "github.com/kariy/starkmint/node"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.ShowHeightCmd,
		cmd.SubmitCmd,
		cmd.VersionCmd,
		cmd.NewRunNodeCmd(nm.DefaultNewNode),
	)

	cmd := cli.PrepareBaseCmd(rootCmd, "STARKMINT", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultHomeDir)))
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
