// Package output provides table rendering.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// TableFormatter renders a *Table, a KeyValues list or a flat counter map.
// Anything else falls back to JSON.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case KeyValues:
		return v.Table().RenderWithOptions(w, f.NoHeaders)
	case map[string]int64:
		return CounterTable(v).RenderWithOptions(w, f.NoHeaders)
	default:
		return (&JSONFormatter{}).Format(w, data)
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// KeyValue is one FIELD/VALUE row.
type KeyValue struct {
	Key   string
	Value any
}

// KeyValues renders as a two-column FIELD/VALUE table in order.
type KeyValues []KeyValue

// Table converts the list to a table.
func (kv KeyValues) Table() *Table {
	t := NewTable("FIELD", "VALUE")
	for _, e := range kv {
		t.AddRow(e.Key, FormatValue(e.Value))
	}
	return t
}

// CounterTable renders counters sorted by path.
func CounterTable(counters map[string]int64) *Table {
	paths := make([]string, 0, len(counters))
	for p := range counters {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	t := NewTable("PATH", "VALUE")
	for _, p := range paths {
		t.AddRow(p, fmt.Sprintf("%d", counters[p]))
	}
	return t
}

// FormatValue formats a scalar for a table cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Format("2006-01-02 15:04:05")
	case time.Duration:
		return x.String()
	case []string:
		if len(x) == 0 {
			return "-"
		}
		return strings.Join(x, ",")
	default:
		return fmt.Sprintf("%v", x)
	}
}
