package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shape names reported in Table.Shape.
const (
	ShapeTransaction    = "transaction"
	ShapeTransactionAlt = "transaction_alt"
	ShapeStock          = "stock"
	ShapeCatalog        = "catalog"
	ShapeExpense        = "expense"
	ShapeWarehouse      = "warehouse"
	ShapeGeneric        = "generic"
)

// rule pairs a column-name predicate with the cleanup for that schema shape.
type rule struct {
	shape string
	match func(t *Table) bool
	apply func(t *Table) *Table
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		shape: ShapeTransaction,
		match: hasColumn("Order ID"),
		apply: func(t *Table) *Table {
			toTime(t, "Date")
			toNumeric(t, "Qty", "Amount", "ship-postal-code")
			fillNull(t, "Amount", 0)
			return t
		},
	},
	{
		shape: ShapeTransactionAlt,
		match: hasColumn("GROSS AMT"),
		apply: func(t *Table) *Table {
			toTime(t, "DATE")
			toNumeric(t, "PCS", "RATE", "GROSS AMT")
			return t
		},
	},
	{
		shape: ShapeStock,
		match: hasColumn("Stock"),
		apply: func(t *Table) *Table {
			toNumeric(t, "Stock")
			return t
		},
	},
	{
		shape: ShapeCatalog,
		match: hasColumn("Style Id"),
		apply: func(t *Table) *Table {
			coerceNumeric(columnsContaining(t, "MRP", "TP", "Weight")...)
			return t
		},
	},
	{
		shape: ShapeExpense,
		match: hasAnyColumn("Expance", "Recived Amount"),
		apply: func(t *Table) *Table {
			t = promoteHeader(t, "Particular", true)
			coerceNumeric(columnsContaining(t, "Amount")...)
			return t
		},
	},
	{
		shape: ShapeWarehouse,
		match: hasColumn("Shiprocket"),
		apply: func(t *Table) *Table {
			return promoteHeader(t, "Heads", true)
		},
	},
}

// Normalize trims column names and applies the first matching shape rule.
// The returned table may be a new value when the header was promoted.
func Normalize(t *Table) *Table {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = strings.TrimSpace(c.Name)
	}
	for i, n := range uniqueNames(names) {
		t.Columns[i].Name = n
	}
	for _, r := range rules {
		if r.match(t) {
			out := r.apply(t)
			out.Shape = r.shape
			return out
		}
	}
	t.Shape = ShapeGeneric
	return t
}

func hasColumn(name string) func(*Table) bool {
	return func(t *Table) bool {
		_, ok := t.column(name)
		return ok
	}
}

func hasAnyColumn(names ...string) func(*Table) bool {
	return func(t *Table) bool {
		for _, n := range names {
			if _, ok := t.column(n); ok {
				return true
			}
		}
		return false
	}
}

// columnsContaining returns every column whose name contains one of markers.
// Promoted headers may repeat a name, so columns are returned, not names.
func columnsContaining(t *Table, markers ...string) []*Column {
	var out []*Column
	for _, c := range t.Columns {
		for _, m := range markers {
			if strings.Contains(c.Name, m) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func toNumeric(t *Table, names ...string) {
	for _, name := range names {
		if c, ok := t.column(name); ok {
			coerceNumeric(c)
		}
	}
}

// coerceNumeric converts columns to float; unparseable cells become null.
func coerceNumeric(cols ...*Column) {
	for _, c := range cols {
		if c.Kind.Numeric() {
			continue
		}
		c.Kind = KindFloat
		c.Num = make([]float64, c.Len())
		c.Time = nil
		for i, s := range c.Raw {
			if c.Null[i] {
				continue
			}
			if f, ok := ParseNumber(s); ok {
				c.Num[i] = f
			} else {
				c.Null[i] = true
			}
		}
	}
}

// toTime parses the named columns as timestamps; failures become null.
func toTime(t *Table, names ...string) {
	for _, name := range names {
		c, ok := t.column(name)
		if !ok || c.Kind == KindTime {
			continue
		}
		c.Kind = KindTime
		c.Num = nil
		c.Time = make([]time.Time, c.Len())
		for i, s := range c.Raw {
			if c.Null[i] {
				continue
			}
			if ts, ok := ParseTime(s); ok {
				c.Time[i] = ts
			} else {
				c.Null[i] = true
			}
		}
	}
}

func fillNull(t *Table, name string, v float64) {
	c, ok := t.column(name)
	if !ok || !c.Kind.Numeric() {
		return
	}
	for i := range c.Null {
		if c.Null[i] {
			c.Null[i] = false
			c.Num[i] = v
			c.Raw[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
}

// promoteHeader makes the first data row the header when it contains token,
// dropping that row. With dedup, repeated names get .1, .2 suffixes.
func promoteHeader(t *Table, token string, dedup bool) *Table {
	if t.rows == 0 {
		return t
	}
	found := false
	header := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		v := strings.TrimSpace(c.Raw[0])
		if !c.Null[0] && v == token {
			found = true
		}
		if c.Null[0] || v == "" {
			v = fmt.Sprintf("Unnamed: %d", j)
		}
		header[j] = v
	}
	if !found {
		return t
	}
	if dedup {
		header = uniqueNames(header)
	}
	out := newTable(header, t.records()[1:])
	out.Name, out.Source = t.Name, t.Source
	return out
}

// column is an exact-name lookup; the normalizer never matches loosely.
func (t *Table) column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// uniqueNames fills blanks with "Unnamed: i" and suffixes repeats as X.1, X.2.
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := map[string]bool{}
	counts := map[string]int{}
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		name := n
		for used[name] {
			counts[n]++
			name = fmt.Sprintf("%s.%d", n, counts[n])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
