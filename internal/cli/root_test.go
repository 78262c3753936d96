package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlrest/internal/db/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	sdb, err := sqlite.Open(path, sqlite.Options{})
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"INSERT INTO users (name) VALUES ('Ann'), ('Bob')",
	} {
		_, err := sdb.Pool().Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, sdb.Close())
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlrest v"+Version)
}

func TestQueryCommand(t *testing.T) {
	path := seed(t)

	out, err := run(t, "query", "--database", path, "--format", "json", "--limit", "1", "select id, name from users order by id")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"Ann"}`+"\n", out)
}

func TestTablesCommand(t *testing.T) {
	path := seed(t)

	out, err := run(t, "tables", "--database", path, "--format", "table")
	require.NoError(t, err)
	assert.Equal(t, "users\n", out)
}

func TestDescribeCommand(t *testing.T) {
	path := seed(t)

	out, err := run(t, "describe", "users", "--database", path, "-f", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "| name   | TEXT    | yes      |")

	_, err = run(t, "describe", "ghosts", "--database", path)
	assert.ErrorContains(t, err, `table "ghosts" not found`)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, err := run(t, "tables", "--blob", "raw")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = run(t, "query", "--format", "xml", "select 1")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}
