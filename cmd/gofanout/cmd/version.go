package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/database"
	"github.com/dbsmedya/gofanout/internal/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version, build details and the database drivers compiled in.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	drivers := make([]string, 0, 2)
	for _, e := range []types.Engine{types.EnginePostgres, types.EngineMySQL} {
		drivers = append(drivers, fmt.Sprintf("%s (%s)", e, database.DriverName(e)))
	}

	cmd.Printf("gofanout version %s\n", Version)
	cmd.Printf("  Commit: %s\n", Commit)
	cmd.Printf("  Go version: %s\n", runtime.Version())
	cmd.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	cmd.Printf("  Drivers: %s\n", strings.Join(drivers, ", "))
}
