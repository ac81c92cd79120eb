package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audss/oncall/internal/version"
)

// VersionCmd prints build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show oncall version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("oncall %s\n", version.Version)
		fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("Go: %s\n", runtime.Version())
	},
}
