package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
	assert.IsNonDecreasing(t, names)
}

func TestInitCreatesLedgerTables(t *testing.T) {
	raw, err := migrationFiles.ReadFile("0001_init.sql")
	require.NoError(t, err)

	sql := string(raw)
	for _, table := range []string{"products", "customers", "suppliers", "invoices", "invoice_items", "stock_movements", "stock_reservations"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
}
