package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
)

type rowPredicate func(i int) bool

// compileFilter resolves a filter against t. Null cells satisfy only is_null.
func compileFilter(t *dataset.Table, f Filter) (rowPredicate, error) {
	col, ok := t.Column(f.Column)
	if !ok {
		return nil, missingColumn(t, f.Column)
	}
	notNull := func(i int) bool { return !col.IsNull(i) }
	switch f.Op {
	case "is_null":
		return col.IsNull, nil
	case "not_null":
		return notNull, nil
	case "contains":
		needle := strings.ToLower(fmt.Sprint(f.Value))
		return func(i int) bool {
			return notNull(i) && strings.Contains(strings.ToLower(col.Text(i)), needle)
		}, nil
	case "in":
		items, err := listValue(f, 0)
		if err != nil {
			return nil, err
		}
		eqs := make([]rowPredicate, 0, len(items))
		for _, it := range items {
			p, err := comparison(col, f, "eq", it)
			if err != nil {
				return nil, err
			}
			eqs = append(eqs, p)
		}
		return func(i int) bool {
			for _, p := range eqs {
				if p(i) {
					return true
				}
			}
			return false
		}, nil
	case "between":
		items, err := listValue(f, 2)
		if err != nil {
			return nil, err
		}
		lo, err := comparison(col, f, "gte", items[0])
		if err != nil {
			return nil, err
		}
		hi, err := comparison(col, f, "lte", items[1])
		if err != nil {
			return nil, err
		}
		return func(i int) bool { return lo(i) && hi(i) }, nil
	case "eq", "ne", "gt", "gte", "lt", "lte":
		return comparison(col, f, f.Op, f.Value)
	default:
		return nil, errorf("unsupported filter op %q (use eq, ne, gt, gte, lt, lte, in, contains, between, is_null, not_null)", f.Op)
	}
}

func listValue(f Filter, want int) ([]any, error) {
	items, ok := f.Value.([]any)
	if !ok {
		return nil, errorf("filter %q on %q needs a list value", f.Op, f.Column)
	}
	if want > 0 && len(items) != want {
		return nil, errorf("filter %q on %q needs exactly %d values", f.Op, f.Column, want)
	}
	return items, nil
}

// comparison builds a predicate comparing the column against a literal
// coerced to the column kind.
func comparison(col *dataset.Column, f Filter, op string, lit any) (rowPredicate, error) {
	if lit == nil {
		return nil, errorf("filter %q on %q needs a value", op, f.Column)
	}
	var cmp func(i int) int
	switch {
	case col.Kind.Numeric():
		x, ok := toFloat(lit)
		if !ok {
			return nil, errorf("filter on %q: value %v is not a number", f.Column, lit)
		}
		cmp = func(i int) int { return compareFloat(col.Num[i], x) }
	case col.Kind == dataset.KindTime:
		ts, ok := toTime(lit)
		if !ok {
			return nil, errorf("filter on %q: value %v is not a date", f.Column, lit)
		}
		cmp = func(i int) int { return col.Time[i].Compare(ts) }
	default:
		s := fmt.Sprint(lit)
		if op == "eq" || op == "ne" {
			cmp = func(i int) int {
				if strings.EqualFold(col.Raw[i], s) {
					return 0
				}
				return strings.Compare(col.Raw[i], s)
			}
		} else {
			cmp = func(i int) int { return strings.Compare(col.Raw[i], s) }
		}
	}
	var test func(c int) bool
	switch op {
	case "eq":
		test = func(c int) bool { return c == 0 }
	case "ne":
		test = func(c int) bool { return c != 0 }
	case "gt":
		test = func(c int) bool { return c > 0 }
	case "gte":
		test = func(c int) bool { return c >= 0 }
	case "lt":
		test = func(c int) bool { return c < 0 }
	case "lte":
		test = func(c int) bool { return c <= 0 }
	}
	return func(i int) bool { return !col.IsNull(i) && test(cmp(i)) }, nil
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		return dataset.ParseNumber(x)
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return dataset.ParseTime(x)
	case int:
		// a bare year
		if x > 999 && x < 10000 {
			return time.Date(x, 1, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func missingColumn(t *dataset.Table, name string) error {
	return errorf("column %q not found in dataset %q (columns: %s)", name, t.Name, strings.Join(t.ColumnNames(), ", "))
}
