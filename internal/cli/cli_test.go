package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportQueryFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addExportFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--supplier", "4", "--status", "available", "--from", "2025-03-01", "--search", "damaged",
	}))

	q := exportQuery(cmd)
	require.NotNil(t, q.SupplierID)
	assert.EqualValues(t, 4, *q.SupplierID)
	assert.Equal(t, "available", q.Status)
	assert.Equal(t, "2025-03-01", q.DateFrom)
	assert.Empty(t, q.DateTo)
	assert.Equal(t, "damaged", q.Search)
}

func TestExportQueryWithoutSupplier(t *testing.T) {
	cmd := &cobra.Command{}
	addExportFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(nil))
	assert.Nil(t, exportQuery(cmd).SupplierID)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["export-credits"])
}
