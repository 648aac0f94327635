package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/database"
)

var databasesConnection string

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the databases reachable through a connection",
	Long: `Databases connects to the server of a connection and lists its user
databases. PostgreSQL templates and the postgres maintenance database are
excluded, as are the MySQL system schemas.

Example:
  gofanout databases -C prod`,
	RunE: runDatabasesList,
}

func init() {
	databasesCmd.Flags().StringVarP(&databasesConnection, "connection", "C", "",
		"Connection name from config or the profile store (required)")
	databasesCmd.MarkFlagRequired("connection")

	rootCmd.AddCommand(databasesCmd)
}

func runDatabasesList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer log.Sync()

	prof, err := resolveProfile(cfg, databasesConnection)
	if err != nil {
		return err
	}

	ctx, stop := database.SetupSignalHandler()
	defer stop()
	names, err := database.ListDatabases(ctx, database.DefaultOpener, prof,
		database.Options{ConnectTimeout: cfg.Execution.ConnectTimeout})
	if err != nil {
		return fmt.Errorf("failed to list databases on %s: %w", prof.Host, err)
	}

	for _, name := range names {
		cmd.Println(name)
	}
	cmd.Printf("\nTotal: %d database(s)\n", len(names))
	return nil
}
