// Package plan interprets the structured analysis plans emitted by the model.
//
// A plan is a single JSON (or YAML) object naming a dataset and a fixed set of
// operations: filter, time bucket, group, aggregate, select, sort, limit and
// an optional chart. Plans are data, never code; execution is bounded by a
// context deadline, a group cap and an output row cap.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLimit is wrapped by execution errors caused by a resource bound.
var ErrLimit = errors.New("plan exceeds execution limits")

// Plan is the decoded model output.
type Plan struct {
	Dataset    string      `yaml:"dataset" json:"dataset"`
	Filters    []Filter    `yaml:"filters,omitempty" json:"filters,omitempty"`
	Bucket     *Bucket     `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	GroupBy    []string    `yaml:"group_by,omitempty" json:"group_by,omitempty"`
	Aggregates []Aggregate `yaml:"aggregates,omitempty" json:"aggregates,omitempty"`
	Select     []string    `yaml:"select,omitempty" json:"select,omitempty"`
	Sort       []SortKey   `yaml:"sort,omitempty" json:"sort,omitempty"`
	Limit      int         `yaml:"limit,omitempty" json:"limit,omitempty"`
	Chart      *ChartSpec  `yaml:"chart,omitempty" json:"chart,omitempty"`
}

// Filter keeps rows where Column Op Value holds. "in" and "between" take a
// list value.
type Filter struct {
	Column string `yaml:"column" json:"column"`
	Op     string `yaml:"op" json:"op"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Bucket truncates a timestamp column to day, week, month or year.
type Bucket struct {
	Column string `yaml:"column" json:"column"`
	Unit   string `yaml:"unit" json:"unit"`
}

// Name is the output column name of the bucket key.
func (b *Bucket) Name() string { return b.Column + "_" + b.Unit }

// Aggregate is one reduction over the rows of a group.
type Aggregate struct {
	Func   string `yaml:"func" json:"func"`
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
	As     string `yaml:"as,omitempty" json:"as,omitempty"`
}

// Name is the output column name of the aggregate.
func (a Aggregate) Name() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Func
	}
	return a.Func + "_" + a.Column
}

// SortKey orders output rows by a column.
type SortKey struct {
	Column string `yaml:"column" json:"column"`
	Desc   bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// ChartSpec asks for a chart built from two result columns.
type ChartSpec struct {
	Type  string `yaml:"type" json:"type"`
	X     string `yaml:"x,omitempty" json:"x,omitempty"`
	Y     string `yaml:"y,omitempty" json:"y,omitempty"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// ExecError is a plan failure whose message is shown to the user.
type ExecError struct {
	Msg string
	Err error
}

func (e *ExecError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrLimit) {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExecError) Unwrap() error { return e.Err }

func errorf(format string, args ...any) error {
	return &ExecError{Msg: fmt.Sprintf(format, args...)}
}

// Limits bounds plan execution.
type Limits struct {
	MaxGroups int
	MaxRows   int
	Timeout   time.Duration
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{MaxGroups: 10000, MaxRows: 50, Timeout: 30 * time.Second}
}

// Parse decodes a plan. JSON is accepted as a subset of YAML; unknown fields
// are rejected so typos surface instead of being ignored.
func Parse(text string) (*Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorf("empty plan")
	}
	// Tabs are not valid YAML indentation and never appear unescaped inside
	// JSON strings.
	text = strings.ReplaceAll(text, "\t", "  ")
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, &ExecError{Msg: "invalid plan", Err: err}
	}
	p.normalize()
	return &p, nil
}

func (p *Plan) normalize() {
	p.Dataset = strings.TrimSpace(p.Dataset)
	for i := range p.Filters {
		p.Filters[i].Op = strings.ToLower(strings.TrimSpace(p.Filters[i].Op))
	}
	for i := range p.Aggregates {
		p.Aggregates[i].Func = strings.ToLower(strings.TrimSpace(p.Aggregates[i].Func))
	}
	if p.Bucket != nil {
		p.Bucket.Unit = strings.ToLower(strings.TrimSpace(p.Bucket.Unit))
	}
	if p.Chart != nil {
		p.Chart.Type = strings.ToLower(strings.TrimSpace(p.Chart.Type))
	}
}

// Reference documents the plan format for the model.
const Reference = `Respond with ONE JSON object (no prose) with these fields:
- "dataset": name of the DataFrame to query (required).
- "filters": list of {"column", "op", "value"}; op is one of eq, ne, gt, gte, lt, lte, in (list value), contains, between (two-item list), is_null, not_null.
- "bucket": optional {"column", "unit"} truncating a timestamp column to day, week, month or year; the key is named <column>_<unit>.
- "group_by": optional list of columns.
- "aggregates": list of {"func", "column", "as"}; func is one of count, count_distinct, sum, mean, min, max, median.
- "select": columns to list when there are no aggregates.
- "sort": list of {"column", "desc"} over output columns.
- "limit": maximum number of output rows.
- "chart": optional {"type": "bar"|"line"|"pie", "x", "y", "title"} over output columns, only when a plot is requested.
A single aggregate without group_by or bucket yields a single value.`

// Example is a worked plan shown to the model.
const Example = `{"dataset": "amazon_sale_report", "filters": [{"column": "Status", "op": "ne", "value": "Cancelled"}], "group_by": ["Category"], "aggregates": [{"func": "sum", "column": "Amount", "as": "revenue"}], "sort": [{"column": "revenue", "desc": true}], "limit": 5, "chart": {"type": "bar", "x": "Category", "y": "revenue", "title": "Top categories by revenue"}}`
