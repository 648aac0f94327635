package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/profile"
	"github.com/dbsmedya/gofanout/internal/types"
)

var (
	connName         string
	connEngine       string
	connHost         string
	connPort         int
	connUser         string
	connPassword     string
	connSavePassword bool
	connSSLMode      string
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Manage saved connection profiles",
	Long: `Connections manages the profiles stored in the TOML profile file
(storage.profiles_file). Connections defined under "connections" in the
config file are listed too but can only be changed there.

Passwords are written to the profile file only with --save-password.
Otherwise set ` + PasswordEnv + ` when running queries.

Example:
  gofanout connections add --name prod --host db.internal --user reporter
  gofanout connections list
  gofanout connections remove prod`,
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connection profiles",
	Args:  cobra.NoArgs,
	RunE:  runConnectionsList,
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a connection profile",
	Args:  cobra.NoArgs,
	RunE:  runConnectionsAdd,
}

var connectionsRemoveCmd = &cobra.Command{
	Use:   "remove <name|id>",
	Short: "Remove a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectionsRemove,
}

func init() {
	f := connectionsAddCmd.Flags()
	f.StringVar(&connName, "name", "", "Profile name (required)")
	f.StringVar(&connEngine, "engine", "postgres", "Server engine (postgres, mysql)")
	f.StringVar(&connHost, "host", "", "Server host (required)")
	f.IntVar(&connPort, "port", 0, "Server port (default: engine's port)")
	f.StringVar(&connUser, "user", "", "User name")
	f.StringVar(&connPassword, "password", "", "Password")
	f.BoolVar(&connSavePassword, "save-password", false, "Store the password in the profile file")
	f.StringVar(&connSSLMode, "ssl-mode", "", "PostgreSQL sslmode or MySQL tls value")
	connectionsAddCmd.MarkFlagRequired("name")
	connectionsAddCmd.MarkFlagRequired("host")

	connectionsCmd.AddCommand(connectionsListCmd, connectionsAddCmd, connectionsRemoveCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func runConnectionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stored, err := profile.NewStore(cfg.Storage.ProfilesFile).Load()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, name := range cfg.ListConnections() {
		p, _ := cfg.Profile(name)
		rows = append(rows, profileRow(p, "config"))
	}
	for _, p := range stored {
		rows = append(rows, profileRow(p, "store"))
	}

	if len(rows) == 0 {
		cmd.Printf("No connections defined in %s or %s\n", GetConfigFile(), cfg.Storage.ProfilesFile)
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Name", "Engine", "Host", "Port", "User", "Password", "Source"})
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func profileRow(p types.ConnectionProfile, source string) []string {
	password := "-"
	if p.Password != "" {
		password = "saved"
	}
	return []string{
		p.Name,
		string(p.EffectiveEngine()),
		p.Host,
		strconv.Itoa(p.EffectivePort()),
		p.User,
		password,
		source,
	}
}

func runConnectionsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Profile(connName); ok {
		return fmt.Errorf("connection %q is already defined in %s", connName, GetConfigFile())
	}

	added, err := profile.NewStore(cfg.Storage.ProfilesFile).Add(types.ConnectionProfile{
		Name:         connName,
		Engine:       types.Engine(connEngine),
		Host:         connHost,
		Port:         connPort,
		User:         connUser,
		Password:     connPassword,
		SavePassword: connSavePassword,
		SSLMode:      connSSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	cmd.Printf("Added connection %s (%s)\n", added.Name, added.ID)
	if connPassword != "" && !connSavePassword {
		cmd.Printf("Password not saved; set %s when running queries\n", PasswordEnv)
	}
	return nil
}

func runConnectionsRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := profile.NewStore(cfg.Storage.ProfilesFile).Remove(args[0]); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	cmd.Printf("Removed connection %s\n", args[0])
	return nil
}
