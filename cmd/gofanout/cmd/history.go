package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the query history",
	Long: `History shows the queries executed with "run", newest first, with the
connection they ran on and whether every database succeeded.

Example:
  gofanout history list --limit 10
  gofanout history clear`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executed queries",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole query history",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum number of entries (0 for all)")

	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("History is empty")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "When", "Connection", "Status", "Query"})
	for _, e := range entries {
		table.Append([]string{
			fmt.Sprint(e.ID),
			humanize.Time(e.Timestamp),
			e.ConnectionName,
			statusText(types.ExecutionStatus(e.Status)),
			truncate(e.QueryText, maxQueryWidth),
		})
	}
	table.Render()
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ClearHistory(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("History cleared")
	return nil
}
