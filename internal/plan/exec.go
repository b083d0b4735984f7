package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
)

// checkEvery is how many rows are scanned between context checks.
const checkEvery = 4096

// Execute runs p against the collection. Every failure, including a panic
// inside the interpreter, is returned as an *ExecError.
func Execute(ctx context.Context, p *Plan, c *dataset.Collection, lim Limits) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errorf("plan execution failed: %v", r)
		}
	}()
	if p == nil {
		return nil, errorf("empty plan")
	}
	if lim.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lim.Timeout)
		defer cancel()
	}

	t, err := resolveDataset(p, c)
	if err != nil {
		return nil, err
	}
	rows, err := selectRows(ctx, t, p.Filters)
	if err != nil {
		return nil, err
	}

	x := &executor{ctx: ctx, plan: p, table: t, rows: rows, lim: lim}
	if len(p.Aggregates) == 0 && len(p.GroupBy) == 0 && p.Bucket == nil {
		res, err = x.listing()
	} else {
		res, err = x.aggregate()
	}
	if err != nil {
		return nil, err
	}
	if p.Chart != nil {
		ch, err := buildChart(p.Chart, res)
		if err != nil {
			return nil, err
		}
		res.Chart = ch
	}
	return res, nil
}

func resolveDataset(p *Plan, c *dataset.Collection) (*dataset.Table, error) {
	if p.Dataset == "" {
		if names := c.Names(); len(names) == 1 {
			t, _ := c.Get(names[0])
			return t, nil
		}
		return nil, errorf("plan names no dataset (available: %s)", strings.Join(c.Names(), ", "))
	}
	t, ok := c.Get(p.Dataset)
	if !ok {
		return nil, errorf("dataset %q not found (available: %s)", p.Dataset, strings.Join(c.Names(), ", "))
	}
	return t, nil
}

func checkCtx(ctx context.Context, i int) error {
	if i%checkEvery != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &ExecError{Msg: "plan execution timed out", Err: err}
	}
	return nil
}

func selectRows(ctx context.Context, t *dataset.Table, filters []Filter) ([]int, error) {
	preds := make([]rowPredicate, 0, len(filters))
	for _, f := range filters {
		p, err := compileFilter(t, f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	out := make([]int, 0, t.Rows())
rows:
	for i := 0; i < t.Rows(); i++ {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		for _, p := range preds {
			if !p(i) {
				continue rows
			}
		}
		out = append(out, i)
	}
	return out, nil
}

type executor struct {
	ctx   context.Context
	plan  *Plan
	table *dataset.Table
	rows  []int
	lim   Limits
}

// listing returns the selected columns of the filtered rows.
func (x *executor) listing() (*Result, error) {
	cols := x.table.Columns
	if len(x.plan.Select) > 0 {
		cols = make([]*dataset.Column, 0, len(x.plan.Select))
		for _, name := range x.plan.Select {
			c, ok := x.table.Column(name)
			if !ok {
				return nil, missingColumn(x.table, name)
			}
			cols = append(cols, c)
		}
	}
	res := &Result{}
	for _, c := range cols {
		res.Columns = append(res.Columns, c.Name)
	}
	// Sort keys may name any table column, not only selected ones.
	var keys []*dataset.Column
	for _, k := range x.plan.Sort {
		c, ok := x.table.Column(k.Column)
		if !ok {
			return nil, missingColumn(x.table, k.Column)
		}
		keys = append(keys, c)
	}
	if len(keys) > 0 {
		sort.SliceStable(x.rows, func(a, b int) bool {
			for j, c := range keys {
				cmp := compareValues(cellValue(c, x.rows[a]), cellValue(c, x.rows[b]))
				if cmp == 0 {
					continue
				}
				if x.plan.Sort[j].Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	limit := x.rowLimit()
	res.TotalRows = len(x.rows)
	for n, i := range x.rows {
		if n == limit {
			break
		}
		row := make([]Value, len(cols))
		for j, c := range cols {
			row[j] = cellValue(c, i)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

type groupKey struct {
	col    *dataset.Column
	bucket string
	name   string
}

func (k groupKey) value(i int) Value {
	if k.bucket == "" {
		return cellValue(k.col, i)
	}
	if k.col.IsNull(i) {
		return Value{Null: true}
	}
	start := truncateTime(k.col.Time[i], k.bucket)
	return Value{Text: formatBucket(start, k.bucket), Num: float64(start.Unix()), Time: true}
}

type group struct {
	keys []Value
	accs []accumulator
}

// aggregate groups the filtered rows and reduces each group.
func (x *executor) aggregate() (*Result, error) {
	var keys []groupKey
	if b := x.plan.Bucket; b != nil {
		c, ok := x.table.Column(b.Column)
		if !ok {
			return nil, missingColumn(x.table, b.Column)
		}
		if c.Kind != dataset.KindTime {
			return nil, errorf("bucket column %q is not a timestamp (kind %s)", c.Name, c.Kind)
		}
		switch b.Unit {
		case "day", "week", "month", "year":
		default:
			return nil, errorf("unsupported bucket unit %q (use day, week, month or year)", b.Unit)
		}
		keys = append(keys, groupKey{col: c, bucket: b.Unit, name: (&Bucket{Column: c.Name, Unit: b.Unit}).Name()})
	}
	for _, name := range x.plan.GroupBy {
		c, ok := x.table.Column(name)
		if !ok {
			return nil, missingColumn(x.table, name)
		}
		keys = append(keys, groupKey{col: c, name: c.Name})
	}

	aggs := x.plan.Aggregates
	if len(aggs) == 0 {
		aggs = []Aggregate{{Func: "count"}}
	}
	specs := make([]aggSpec, len(aggs))
	for j, a := range aggs {
		s, err := newAggSpec(x.table, a)
		if err != nil {
			return nil, err
		}
		specs[j] = s
	}

	groups := map[string]*group{}
	var order []string
	var sb strings.Builder
	for n, i := range x.rows {
		if err := checkCtx(x.ctx, n); err != nil {
			return nil, err
		}
		sb.Reset()
		kv := make([]Value, len(keys))
		for j, k := range keys {
			kv[j] = k.value(i)
			if kv[j].Null {
				sb.WriteString("\x00")
			}
			sb.WriteString(kv[j].Text)
			sb.WriteString("\x1f")
		}
		id := sb.String()
		g, ok := groups[id]
		if !ok {
			if x.lim.MaxGroups > 0 && len(groups) >= x.lim.MaxGroups {
				return nil, &ExecError{Msg: fmt.Sprintf("too many groups (more than %d); add filters or a coarser bucket", x.lim.MaxGroups), Err: ErrLimit}
			}
			g = &group{keys: kv, accs: make([]accumulator, len(specs))}
			for j, s := range specs {
				g.accs[j] = s.newAcc()
			}
			groups[id] = g
			order = append(order, id)
		}
		for j, s := range specs {
			g.accs[j].add(s.col, i)
		}
	}

	res := &Result{}
	for _, k := range keys {
		res.Columns = append(res.Columns, k.name)
	}
	for _, a := range aggs {
		res.Columns = append(res.Columns, a.Name())
	}

	if len(keys) == 0 {
		// Ungrouped reductions always yield one row, even over zero input rows.
		row := make([]Value, len(specs))
		for j, s := range specs {
			if len(order) == 0 {
				row[j] = s.newAcc().result()
			} else {
				row[j] = groups[order[0]].accs[j].result()
			}
		}
		res.Rows = [][]Value{row}
		res.TotalRows = 1
		if len(specs) == 1 && x.plan.Chart == nil {
			res.Scalar = &row[0]
		}
		return res, nil
	}

	all := make([][]Value, 0, len(order))
	for _, id := range order {
		g := groups[id]
		row := append([]Value{}, g.keys...)
		for _, a := range g.accs {
			row = append(row, a.result())
		}
		all = append(all, row)
	}
	if err := sortRows(all, res.Columns, x.plan.Sort, len(keys)); err != nil {
		return nil, err
	}
	res.TotalRows = len(all)
	if limit := x.rowLimit(); len(all) > limit {
		all = all[:limit]
	}
	res.Rows = all
	return res, nil
}

func (x *executor) rowLimit() int {
	limit := x.plan.Limit
	if x.lim.MaxRows > 0 && (limit <= 0 || limit > x.lim.MaxRows) {
		limit = x.lim.MaxRows
	}
	if limit <= 0 {
		limit = int(^uint(0) >> 1)
	}
	return limit
}

// sortRows orders output rows by the plan's sort keys, or by the group keys
// ascending when none are given.
func sortRows(rows [][]Value, columns []string, keys []SortKey, nGroup int) error {
	type key struct {
		idx  int
		desc bool
	}
	var ks []key
	for _, k := range keys {
		idx := indexOf(columns, k.Column)
		if idx < 0 {
			return errorf("sort column %q is not an output column (output: %s)", k.Column, strings.Join(columns, ", "))
		}
		ks = append(ks, key{idx: idx, desc: k.Desc})
	}
	if len(ks) == 0 {
		for i := 0; i < nGroup; i++ {
			ks = append(ks, key{idx: i})
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for _, k := range ks {
			cmp := compareValues(rows[a][k.idx], rows[b][k.idx])
			if cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	for i, c := range columns {
		if strings.EqualFold(c, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func truncateTime(t time.Time, unit string) time.Time {
	y, m, d := t.Date()
	switch unit {
	case "year":
		return time.Date(y, 1, 1, 0, 0, 0, 0, t.Location())
	case "month":
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case "week":
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

func formatBucket(t time.Time, unit string) string {
	switch unit {
	case "year":
		return t.Format("2006")
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
