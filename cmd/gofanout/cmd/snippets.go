package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/store"
)

var (
	snippetName        string
	snippetDescription string
	snippetContent     string
	snippetFile        string
)

var snippetsCmd = &cobra.Command{
	Use:   "snippets",
	Short: "Manage saved query snippets",
	Long: `Snippets are named queries kept in the history database. Run one with
"gofanout run --snippet <name|id>".

Example:
  gofanout snippets add --name sizes --content "SELECT pg_database_size(current_database())"
  gofanout snippets list
  gofanout snippets show sizes`,
}

var snippetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snippets",
	Args:  cobra.NoArgs,
	RunE:  runSnippetsList,
}

var snippetsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a snippet",
	Args:  cobra.NoArgs,
	RunE:  runSnippetsAdd,
}

var snippetsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsUpdate,
}

var snippetsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsDelete,
}

var snippetsShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print a snippet's SQL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsShow,
}

func init() {
	for _, c := range []*cobra.Command{snippetsAddCmd, snippetsUpdateCmd} {
		c.Flags().StringVar(&snippetName, "name", "", "Snippet name (required)")
		c.Flags().StringVar(&snippetDescription, "description", "", "Short description")
		c.Flags().StringVar(&snippetContent, "content", "", "SQL text")
		c.Flags().StringVar(&snippetFile, "file", "", "Read SQL text from a file")
		c.MarkFlagRequired("name")
	}

	snippetsCmd.AddCommand(snippetsListCmd, snippetsAddCmd, snippetsUpdateCmd, snippetsDeleteCmd, snippetsShowCmd)
	rootCmd.AddCommand(snippetsCmd)
}

// snippetInput builds the input from --content or --file.
func snippetInput() (store.SnippetInput, error) {
	if snippetContent != "" && snippetFile != "" {
		return store.SnippetInput{}, fmt.Errorf("--content and --file are mutually exclusive")
	}
	content := snippetContent
	if snippetFile != "" {
		data, err := os.ReadFile(snippetFile)
		if err != nil {
			return store.SnippetInput{}, fmt.Errorf("failed to read snippet file: %w", err)
		}
		content = string(data)
	}
	return store.SnippetInput{Name: snippetName, Description: snippetDescription, Content: content}, nil
}

func parseSnippetID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snippet id %q", arg)
	}
	return id, nil
}

func runSnippetsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	snippets, err := s.Snippets(cmd.Context())
	if err != nil {
		return err
	}
	if len(snippets) == 0 {
		cmd.Println("No snippets saved")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Name", "Description", "SQL"})
	for _, sn := range snippets {
		table.Append([]string{
			fmt.Sprint(sn.ID),
			sn.Name,
			truncate(sn.Description, maxCellWidth),
			truncate(sn.Content, maxQueryWidth),
		})
	}
	table.Render()
	return nil
}

func runSnippetsAdd(cmd *cobra.Command, args []string) error {
	in, err := snippetInput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.CreateSnippet(cmd.Context(), in)
	if err != nil {
		return err
	}
	cmd.Printf("Created snippet %d (%s)\n", id, in.Name)
	return nil
}

func runSnippetsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseSnippetID(args[0])
	if err != nil {
		return err
	}
	in, err := snippetInput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.UpdateSnippet(cmd.Context(), id, in); err != nil {
		return err
	}
	cmd.Printf("Updated snippet %d\n", id)
	return nil
}

func runSnippetsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseSnippetID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteSnippet(cmd.Context(), id); err != nil {
		return err
	}
	cmd.Printf("Deleted snippet %d\n", id)
	return nil
}

func runSnippetsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sn, err := findSnippet(cmd.Context(), s, args[0])
	if err != nil {
		return err
	}
	if sn.Description != "" {
		cmd.Printf("-- %s\n", sn.Description)
	}
	cmd.Println(sn.Content)
	return nil
}
