package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred scalar type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindTime:
		return "timestamp"
	default:
		return "string"
	}
}

// Numeric reports whether values of this kind live in Column.Num.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// Column holds one typed column. Raw keeps the source text of every cell so
// coercions and header promotion can be re-applied; Num and Time are only
// populated for numeric and timestamp kinds.
type Column struct {
	Name string
	Kind Kind
	Raw  []string
	Num  []float64
	Time []time.Time
	Null []bool
}

func newColumn(name string, raw []string, null []bool) *Column {
	c := &Column{Name: name, Raw: raw, Null: null}
	c.infer()
	return c
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Raw) }

// IsNull reports whether cell i is null.
func (c *Column) IsNull(i int) bool { return c.Null[i] }

// Text renders cell i for display. Nulls render as "".
func (c *Column) Text(i int) string {
	if c.Null[i] {
		return ""
	}
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(int64(c.Num[i]), 10)
	case KindFloat:
		return FormatFloat(c.Num[i])
	case KindTime:
		return FormatTime(c.Time[i])
	default:
		return c.Raw[i]
	}
}

// NonNull returns the index of the first non-null cell, or -1.
func (c *Column) NonNull() int {
	for i, n := range c.Null {
		if !n {
			return i
		}
	}
	return -1
}

// infer assigns Kind from the raw cells: integer, then float, then string.
func (c *Column) infer() {
	c.Num, c.Time = nil, nil
	seen := false
	isInt, isFloat := true, true
	for i, s := range c.Raw {
		if c.Null[i] {
			continue
		}
		seen = true
		v := strings.TrimSpace(s)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt && isFloat {
			if _, ok := parsePlainFloat(v); !ok {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !seen:
		c.Kind = KindString
	case isInt:
		c.Kind = KindInt
	case isFloat:
		c.Kind = KindFloat
	default:
		c.Kind = KindString
		return
	}
	c.Num = make([]float64, len(c.Raw))
	for i, s := range c.Raw {
		if c.Null[i] {
			continue
		}
		c.Num[i], _ = parsePlainFloat(strings.TrimSpace(s))
	}
}

// Table is one in-memory dataset. It is not modified after loading.
type Table struct {
	Name    string
	Source  string
	Shape   string
	Columns []*Column
	rows    int
}

func newTable(header []string, records [][]string) *Table {
	t := &Table{rows: len(records)}
	for j, name := range header {
		raw := make([]string, len(records))
		null := make([]bool, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = rec[j]
			}
			null[i] = j >= len(rec) || isNA(raw[i])
		}
		t.Columns = append(t.Columns, newColumn(name, raw, null))
	}
	return t
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by exact name, then case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return nil, false
}

// Head renders the first n rows as a pipe table.
func (t *Table) Head(n int) string {
	if n > t.rows {
		n = t.rows
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = c.Text(i)
		}
		rows[i] = row
	}
	return MarkdownTable(t.ColumnNames(), rows)
}

// records rebuilds the raw grid, used when the header changes.
func (t *Table) records() [][]string {
	out := make([][]string, t.rows)
	for i := range out {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			if !c.Null[i] {
				row[j] = c.Raw[i]
			}
		}
		out[i] = row
	}
	return out
}

// Collection maps dataset names to tables.
type Collection struct {
	tables map[string]*Table
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{tables: map[string]*Table{}}
}

// Put adds t under t.Name, replacing any previous table with that name.
func (c *Collection) Put(t *Table) { c.tables[t.Name] = t }

// Get looks a dataset up by name. Names are matched exactly first, then in
// their derived form, so "Amazon Sale Report" finds amazon_sale_report.
func (c *Collection) Get(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	if t, ok := c.tables[name]; ok {
		return t, true
	}
	t, ok := c.tables[normalizeName(name)]
	return t, ok
}

// Len returns the number of datasets.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// Names returns the dataset names sorted.
func (c *Collection) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.tables))
	for k := range c.tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarkdownTable renders a header and rows as a pipe table.
func MarkdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("|")
	for _, h := range header {
		b.WriteString(" " + safeVal(h) + " |")
	}
	b.WriteString("\n|")
	for range header {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("|")
		for _, v := range r {
			b.WriteString(" " + safeVal(v) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// FormatFloat renders a float without exponent or trailing zeros.
func FormatFloat(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatTime renders a date, adding the clock only when it is not midnight.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%d rows x %d columns)", t.Name, t.rows, len(t.Columns))
}
