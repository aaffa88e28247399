package nutrisync

import (
	"fmt"
	"runtime/debug"

	"github.com/saadjs/nutrisync/internal/db"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/saadjs/nutrisync/cmd/nutrisync.version=...".
var (
	version = "dev"
	commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version/build metadata",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) {
	rev := commit
	if rev == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					rev = s.Value
				}
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "nutrisync %s\n", version)
	if rev != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", rev)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", db.AppSchema.Version)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
