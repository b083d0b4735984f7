package plan

import (
	"sort"

	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
	"github.com/shopspring/decimal"
)

type accumulator interface {
	add(c *dataset.Column, i int)
	result() Value
}

type aggSpec struct {
	col    *dataset.Column
	newAcc func() accumulator
}

func newAggSpec(t *dataset.Table, a Aggregate) (aggSpec, error) {
	var col *dataset.Column
	if a.Column != "" {
		c, ok := t.Column(a.Column)
		if !ok {
			return aggSpec{}, missingColumn(t, a.Column)
		}
		col = c
	}
	needNumeric := func(verb string) error {
		if col == nil {
			return errorf("%s needs a column", a.Func)
		}
		if !col.Kind.Numeric() {
			return errorf("cannot %s non-numeric column %q (kind %s)", verb, col.Name, col.Kind)
		}
		return nil
	}
	switch a.Func {
	case "count":
		return aggSpec{col: col, newAcc: func() accumulator { return &countAcc{} }}, nil
	case "count_distinct":
		if col == nil {
			return aggSpec{}, errorf("count_distinct needs a column")
		}
		return aggSpec{col: col, newAcc: func() accumulator { return &distinctAcc{seen: map[string]struct{}{}} }}, nil
	case "sum":
		if err := needNumeric("sum"); err != nil {
			return aggSpec{}, err
		}
		return aggSpec{col: col, newAcc: func() accumulator { return &sumAcc{} }}, nil
	case "mean", "avg", "average":
		if err := needNumeric("average"); err != nil {
			return aggSpec{}, err
		}
		return aggSpec{col: col, newAcc: func() accumulator { return &sumAcc{mean: true} }}, nil
	case "median":
		if err := needNumeric("take the median of"); err != nil {
			return aggSpec{}, err
		}
		return aggSpec{col: col, newAcc: func() accumulator { return &medianAcc{} }}, nil
	case "min", "max":
		if col == nil {
			return aggSpec{}, errorf("%s needs a column", a.Func)
		}
		wantMax := a.Func == "max"
		return aggSpec{col: col, newAcc: func() accumulator { return &extremeAcc{max: wantMax} }}, nil
	default:
		return aggSpec{}, errorf("unsupported aggregate %q (use count, count_distinct, sum, mean, min, max, median)", a.Func)
	}
}

// countAcc counts rows, or non-null cells when a column is given.
type countAcc struct{ n int }

func (a *countAcc) add(c *dataset.Column, i int) {
	if c == nil || !c.IsNull(i) {
		a.n++
	}
}

func (a *countAcc) result() Value { return numberValue(float64(a.n)) }

type distinctAcc struct{ seen map[string]struct{} }

func (a *distinctAcc) add(c *dataset.Column, i int) {
	if !c.IsNull(i) {
		a.seen[c.Text(i)] = struct{}{}
	}
}

func (a *distinctAcc) result() Value { return numberValue(float64(len(a.seen))) }

// sumAcc sums in decimal so currency totals do not pick up float drift.
type sumAcc struct {
	sum  decimal.Decimal
	n    int64
	mean bool
}

func (a *sumAcc) add(c *dataset.Column, i int) {
	if c.IsNull(i) {
		return
	}
	a.sum = a.sum.Add(decimal.NewFromFloat(c.Num[i]))
	a.n++
}

func (a *sumAcc) result() Value {
	if !a.mean {
		return decimalValue(a.sum)
	}
	if a.n == 0 {
		return Value{Null: true}
	}
	return decimalValue(a.sum.Div(decimal.NewFromInt(a.n)).Round(4))
}

func decimalValue(d decimal.Decimal) Value {
	return Value{Text: d.String(), Num: d.InexactFloat64(), Numeric: true}
}

type medianAcc struct{ vals []float64 }

func (a *medianAcc) add(c *dataset.Column, i int) {
	if !c.IsNull(i) {
		a.vals = append(a.vals, c.Num[i])
	}
}

func (a *medianAcc) result() Value {
	n := len(a.vals)
	if n == 0 {
		return Value{Null: true}
	}
	sort.Float64s(a.vals)
	if n%2 == 1 {
		return numberValue(a.vals[n/2])
	}
	return numberValue((a.vals[n/2-1] + a.vals[n/2]) / 2)
}

// extremeAcc keeps the smallest or largest non-null cell of any kind.
type extremeAcc struct {
	best Value
	set  bool
	max  bool
}

func (a *extremeAcc) add(c *dataset.Column, i int) {
	if c.IsNull(i) {
		return
	}
	v := cellValue(c, i)
	if !a.set {
		a.best, a.set = v, true
		return
	}
	cmp := compareValues(v, a.best)
	if (a.max && cmp > 0) || (!a.max && cmp < 0) {
		a.best = v
	}
}

func (a *extremeAcc) result() Value {
	if !a.set {
		return Value{Null: true}
	}
	return a.best
}
