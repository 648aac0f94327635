package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofanout/internal/store"
)

func seedHistory(t *testing.T, cfgPath string, queries ...string) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(filepath.Dir(cfgPath), "history.sqlite"))
	require.NoError(t, err)
	defer s.Close()
	for _, q := range queries {
		require.NoError(t, s.AddHistory(context.Background(), q, "local", "success"))
	}
}

func TestHistoryCommandStructure(t *testing.T) {
	assert.Equal(t, "history", historyCmd.Use)

	limit := historyListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "20", limit.DefValue)
}

func TestHistory_ListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out, err := executeCommand(t, "history", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History is empty")
}

func TestHistory_ListAndClear(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	seedHistory(t, cfgPath, "SELECT 'first'", "SELECT 'second'", "SELECT 'third'")

	out, err := executeCommand(t, "history", "list", "--config", cfgPath, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT 'third'")
	assert.Contains(t, out, "SELECT 'second'")
	assert.NotContains(t, out, "SELECT 'first'")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "success")

	out, err = executeCommand(t, "history", "clear", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	out, err = executeCommand(t, "history", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History is empty")
}
