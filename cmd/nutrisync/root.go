package nutrisync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath    string
	configDir string
	userFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "nutrisync",
	Short:         "nutrisync is a local-first nutrition diary",
	Long:          "nutrisync keeps a food diary, weight log and calorie/macro goals in a local SQLite database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding config.yml")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id (default: the selected user)")
}
