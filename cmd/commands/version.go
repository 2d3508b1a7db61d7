package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kariy/starkmint/app"
)

// VersionCmd prints the application version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (protocol %d)\n", app.AppName, app.AppVersion, app.ProtocolVersion)
	},
}
