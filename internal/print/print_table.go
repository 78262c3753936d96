package print

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/stream"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

type Options struct {
	MaxWidth int  // max width for each column, 0 = no limit
	Limit    int  // max rows pulled from the stream, 0 = all
	Color    bool // style the header row
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89DCEB"))

// RenderTable pulls rows from st (up to opts.Limit), closes it and writes
// them as an ASCII table. Column widths need every row, so the rows shown
// are buffered.
func RenderTable(w io.Writer, st *stream.Stream[value.Row], opts Options) error {
	defer func() { _ = st.Close() }()

	columns := st.Columns()
	cols := len(columns)
	if cols == 0 {
		fmt.Fprintln(w, "(no columns)")
		return nil
	}

	var data []value.Row
	for st.Next() {
		row, err := st.Row()
		if err != nil {
			return err
		}
		data = append(data, row)
		if opts.Limit > 0 && len(data) >= opts.Limit {
			break
		}
	}
	if err := st.Err(); err != nil {
		return err
	}
	truncated := opts.Limit > 0 && len(data) >= opts.Limit
	if err := st.Close(); err != nil {
		return err
	}

	cells := make([][]string, len(data))
	for i, r := range data {
		cells[i] = make([]string, cols)
		for j, cell := range r.Values() {
			cells[i][j] = formatCell(cell)
		}
	}
	renderGrid(w, columns, cells, opts)
	if truncated {
		fmt.Fprintf(w, "(first %d rows)\n", opts.Limit)
	}
	return nil
}

// RenderSchema writes one line per column of schema.
func RenderSchema(w io.Writer, schema catalog.Schema, opts Options) {
	fmt.Fprintln(w, schema.Table)
	cells := make([][]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cells[i] = []string{c.Name, c.Type, flag(c.NotNull), flag(c.HasDefault), flag(c.PrimaryKey)}
	}
	renderGrid(w, []string{"column", "type", "not null", "default", "pk"}, cells, opts)
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func renderGrid(w io.Writer, columns []string, data [][]string, opts Options) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 40
	}

	// compute widths
	widths := make([]int, len(columns))
	for i, name := range columns {
		widths[i] = lipgloss.Width(name)
	}

	for _, r := range data {
		for i, s := range r {
			if l := lipgloss.Width(s); l > widths[i] {
				if l > opts.MaxWidth {
					l = opts.MaxWidth
				}
				widths[i] = l
			}
		}
	}

	// helpers
	sep := func(ch string) string {
		var b strings.Builder
		b.WriteString("+")
		for i := range widths {
			b.WriteString(strings.Repeat(ch, widths[i]+2))
			b.WriteString("+")
		}
		return b.String()
	}

	writeRow := func(cells []string, style func(string) string) {
		var b strings.Builder
		b.WriteString("|")
		for i, c := range cells {
			cut := padRight(truncate(c, widths[i]), widths[i])
			if style != nil {
				cut = style(cut)
			}
			b.WriteString(" ")
			b.WriteString(cut)
			b.WriteString(" |")
		}
		fmt.Fprintln(w, b.String())
	}

	// header
	var style func(string) string
	if opts.Color {
		style = func(s string) string { return headerStyle.Render(s) }
	}
	fmt.Fprintln(w, sep("-"))
	writeRow(columns, style)
	fmt.Fprintln(w, sep("="))

	// data
	for _, r := range data {
		writeRow(r, nil)
	}
	fmt.Fprintln(w, sep("-"))
}

// RenderJSONLines writes one JSON object per row as rows are pulled, up to
// opts.Limit, and closes st.
func RenderJSONLines(w io.Writer, st *stream.Stream[value.Row], opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	n := 0
	for row, err := range st.All() {
		if err != nil {
			return err
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		n++
		if opts.Limit > 0 && n >= opts.Limit {
			break
		}
	}
	return nil
}

func formatCell(v value.Value) string {
	switch v.Kind() {
	case value.Null:
		return "NULL"
	case value.String:
		s := v.Str()
		if isPrintable(s) {
			return s
		}
		return fmt.Sprintf("<%d bytes>", len(s))
	default:
		return v.String()
	}
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

// padRight and truncate work in terminal cells, not bytes.
func padRight(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}

func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	tail := "..."
	if w < 3 {
		tail = ""
	}
	budget := w - len(tail)
	var b strings.Builder
	n := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if n+rw > budget {
			break
		}
		b.WriteRune(r)
		n += rw
	}
	return b.String() + tail
}
