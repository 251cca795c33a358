package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

// runVersion prints the version and build information.
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("inkwell version %s go=%s\n",
		build.Version, runtime.Version())
}
