package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/chart"
	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
)

// Value is one output cell.
type Value struct {
	Text    string
	Num     float64
	Numeric bool
	Time    bool
	Null    bool
}

// MarshalJSON renders numbers as JSON numbers and nulls as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Null:
		return []byte("null"), nil
	case v.Numeric:
		return json.Marshal(v.Num)
	default:
		return json.Marshal(v.Text)
	}
}

func (v Value) String() string {
	if v.Null {
		return "N/A"
	}
	return v.Text
}

func cellValue(c *dataset.Column, i int) Value {
	if c.IsNull(i) {
		return Value{Null: true}
	}
	switch {
	case c.Kind.Numeric():
		return Value{Text: c.Text(i), Num: c.Num[i], Numeric: true}
	case c.Kind == dataset.KindTime:
		return Value{Text: c.Text(i), Num: float64(c.Time[i].Unix()), Time: true}
	default:
		return Value{Text: c.Raw[i]}
	}
}

func numberValue(f float64) Value {
	return Value{Text: dataset.FormatFloat(f), Num: f, Numeric: true}
}

// compareValues orders nulls last, numbers and times by value and
// everything else lexically.
func compareValues(a, b Value) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	case (a.Numeric && b.Numeric) || (a.Time && b.Time):
		return compareFloat(a.Num, b.Num)
	default:
		return strings.Compare(a.Text, b.Text)
	}
}

// Result is the outcome of a plan: a single value or a table, plus an
// optional chart.
type Result struct {
	Scalar    *Value       `json:"scalar,omitempty"`
	Columns   []string     `json:"columns,omitempty"`
	Rows      [][]Value    `json:"rows,omitempty"`
	TotalRows int          `json:"total_rows"`
	Chart     *chart.Chart `json:"chart,omitempty"`
}

// String renders the result as the text handed to the answer prompt.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	if r.Scalar != nil {
		return r.Scalar.String()
	}
	if len(r.Rows) == 0 {
		return "No rows matched."
	}
	rows := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			if !v.Null {
				cells[j] = v.Text
			}
		}
		rows[i] = cells
	}
	out := dataset.MarkdownTable(r.Columns, rows)
	if r.TotalRows > len(r.Rows) {
		out += fmt.Sprintf("(showing %d of %d rows)\n", len(r.Rows), r.TotalRows)
	}
	return strings.TrimRight(out, "\n")
}

// buildChart maps two result columns onto a chart. X defaults to the first
// column and Y to the last numeric one.
func buildChart(spec *ChartSpec, r *Result) (*chart.Chart, error) {
	typ := spec.Type
	if typ == "" {
		typ = chart.TypeBar
	}
	yi := -1
	if spec.Y != "" {
		if yi = indexOf(r.Columns, spec.Y); yi < 0 {
			return nil, errorf("chart column %q is not an output column (output: %s)", spec.Y, strings.Join(r.Columns, ", "))
		}
	} else {
		for j := len(r.Columns) - 1; j >= 0; j-- {
			if columnNumeric(r, j) {
				yi = j
				break
			}
		}
		if yi < 0 {
			return nil, errorf("chart needs a numeric output column")
		}
	}
	xi := -1
	if spec.X != "" {
		if xi = indexOf(r.Columns, spec.X); xi < 0 {
			return nil, errorf("chart column %q is not an output column (output: %s)", spec.X, strings.Join(r.Columns, ", "))
		}
	} else {
		for j := range r.Columns {
			if j != yi {
				xi = j
				break
			}
		}
	}

	ch := &chart.Chart{Type: typ, Title: spec.Title, YLabel: r.Columns[yi]}
	if xi >= 0 {
		ch.XLabel = r.Columns[xi]
	}
	for _, row := range r.Rows {
		y := row[yi]
		if y.Null {
			continue
		}
		if !y.Numeric {
			return nil, errorf("chart column %q is not numeric", r.Columns[yi])
		}
		label := r.Columns[yi]
		if xi >= 0 {
			label = row[xi].String()
		}
		ch.Labels = append(ch.Labels, label)
		ch.Values = append(ch.Values, y.Num)
	}
	if err := ch.Validate(); err != nil {
		return nil, &ExecError{Msg: "invalid chart", Err: err}
	}
	return ch, nil
}

func columnNumeric(r *Result, j int) bool {
	for _, row := range r.Rows {
		if !row[j].Null {
			return row[j].Numeric
		}
	}
	return false
}
