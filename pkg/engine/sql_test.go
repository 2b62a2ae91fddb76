package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSQLFileSplitsSetupAndQuery(t *testing.T) {
	content := `
-- attach the warehouse
ATTACH 'host=db.internal database=reporting' AS db (TYPE mysql);
USE db;
SELECT * FROM orders WHERE region = 'EU'
`
	setup, query, kind, dbName := parseSQLFile(content)
	require.Len(t, setup, 2)
	require.Equal(t, "SELECT * FROM orders WHERE region = 'EU'", query)
	require.Equal(t, dbKindMySQL, kind)
	require.Equal(t, "reporting", dbName)
}

func TestParseSQLFileStripsCommentLines(t *testing.T) {
	content := `
// a leading comment
SELECT 1
`
	_, query, _, _ := parseSQLFile(content)
	require.Equal(t, "SELECT 1", query)
}

func TestTransformForMySQLQualifiesUnqualifiedTables(t *testing.T) {
	out := transformForMySQL("SELECT * FROM orders WHERE id = 1", dbKindMySQL, "reporting")
	require.Equal(t, "SELECT * FROM reporting.orders WHERE id = 1", out)
}

func TestTransformForMySQLLeavesQualifiedTablesAlone(t *testing.T) {
	out := transformForMySQL("SELECT * FROM reporting.orders", dbKindMySQL, "reporting")
	require.Equal(t, "SELECT * FROM reporting.orders", out)
}

func TestTransformForMySQLNoOpForOtherKinds(t *testing.T) {
	out := transformForMySQL("SELECT * FROM orders", dbKindPostgreSQL, "reporting")
	require.Equal(t, "SELECT * FROM orders", out)
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("SNAPBASE_TEST_HOST", "db.internal")
	defer os.Unsetenv("SNAPBASE_TEST_HOST")

	out := substituteEnvVars("host=${SNAPBASE_TEST_HOST}")
	require.Equal(t, "host=db.internal", out)
}

func TestReadExpressionForKnownExtensions(t *testing.T) {
	expr, err := readExpressionFor("orders.csv")
	require.NoError(t, err)
	require.Contains(t, expr, "read_csv_auto")

	expr, err = readExpressionFor("orders.parquet")
	require.NoError(t, err)
	require.Contains(t, expr, "read_parquet")

	_, err = readExpressionFor("orders.unknownext")
	require.Error(t, err)
}

func TestSanitizeViewName(t *testing.T) {
	require.Equal(t, "orders_csv", SanitizeViewName("orders.csv"))
	require.Equal(t, "database_table", SanitizeViewName("database:table"))
}
