package print_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/print"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/testutil"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

func openRows(t *testing.T, query string) *stream.Stream[value.Row] {
	t.Helper()
	sqldb := testutil.OpenSQLite(t, 1,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, bio TEXT, avatar BLOB)",
		"INSERT INTO users VALUES (1, 'Ann', 'likes long walks on the beach', x'89504e47'), (2, 'Bob', NULL, NULL), (3, 'Cy', '', NULL)",
	)
	ctx := context.Background()
	h, err := (&stream.Pool{DB: sqldb}).Lease(ctx)
	require.NoError(t, err)
	codec := value.Codec{}
	st, err := stream.Open(ctx, h, query, stream.Infallible(func(r stream.Record) value.Row {
		return codec.Row(r.Columns, r.Types, r.Values)
	}))
	require.NoError(t, err)
	return st
}

func TestRenderTable(t *testing.T) {
	st := openRows(t, "SELECT id, name, bio, avatar FROM users ORDER BY id")

	var buf bytes.Buffer
	require.NoError(t, print.RenderTable(&buf, st, print.Options{MaxWidth: 10}))

	want := strings.Join([]string{
		"+----+------+------------+--------+",
		"| id | name | bio        | avatar |",
		"+====+======+============+========+",
		"| 1  | Ann  | likes l... | <blob> |",
		"| 2  | Bob  | NULL       | NULL   |",
		"| 3  | Cy   |            | NULL   |",
		"+----+------+------------+--------+",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
	assert.False(t, st.Next(), "stream is closed")
}

func TestRenderTable_MultiByteCells(t *testing.T) {
	st := openRows(t, "SELECT 'héllo wörld ünïcode' AS s, '日本語テキスト' AS jp")

	var buf bytes.Buffer
	require.NoError(t, print.RenderTable(&buf, st, print.Options{MaxWidth: 10}))

	want := strings.Join([]string{
		"+------------+------------+",
		"| s          | jp         |",
		"+============+============+",
		"| héllo w... | 日本語...  |",
		"+------------+------------+",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestRenderTable_Limit(t *testing.T) {
	st := openRows(t, "SELECT id FROM users ORDER BY id")

	var buf bytes.Buffer
	require.NoError(t, print.RenderTable(&buf, st, print.Options{Limit: 2}))

	out := buf.String()
	assert.Contains(t, out, "| 1  |")
	assert.Contains(t, out, "| 2  |")
	assert.NotContains(t, out, "| 3  |")
	assert.Contains(t, out, "(first 2 rows)")
}

func TestRenderJSONLines(t *testing.T) {
	st := openRows(t, "SELECT id, name, avatar FROM users ORDER BY id")

	var buf bytes.Buffer
	require.NoError(t, print.RenderJSONLines(&buf, st, print.Options{Limit: 2}))

	assert.Equal(t,
		`{"id":1,"name":"Ann","avatar":"<blob>"}`+"\n"+`{"id":2,"name":"Bob","avatar":null}`+"\n",
		buf.String())
}

func TestRenderSchema(t *testing.T) {
	var buf bytes.Buffer
	print.RenderSchema(&buf, catalog.Schema{
		Table: "users",
		Columns: []catalog.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
		},
	}, print.Options{})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "users\n"))
	assert.Contains(t, out, "| id     | INTEGER |          |         | yes |")
	assert.Contains(t, out, "| name   | TEXT    | yes      |         |     |")
}
