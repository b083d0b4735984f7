package plan

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(`{"dataset": "sales", "colour": "red"}`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	var ee *ExecError
	if !errors.As(err, &ee) || ee.Msg != "invalid plan" {
		t.Fatalf("expected invalid plan ExecError, got %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse("  \n"); err == nil || err.Error() != "empty plan" {
		t.Fatalf("got %v", err)
	}
}

func TestParseNormalizes(t *testing.T) {
	p, err := Parse("{\n\t\"dataset\": \" sales \",\n\t\"filters\": [{\"column\": \"Status\", \"op\": \"EQ\", \"value\": \"Shipped\"}],\n\t\"bucket\": {\"column\": \"Date\", \"unit\": \"Month\"},\n\t\"aggregates\": [{\"func\": \"SUM\", \"column\": \"Amount\"}],\n\t\"chart\": {\"type\": \"Bar\"}\n}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Dataset != "sales" || p.Filters[0].Op != "eq" || p.Bucket.Unit != "month" || p.Aggregates[0].Func != "sum" || p.Chart.Type != "bar" {
		t.Fatalf("not normalized: %+v", p)
	}
}

func TestParseExampleIsValid(t *testing.T) {
	p, err := Parse(Example)
	if err != nil {
		t.Fatalf("Example does not parse: %v", err)
	}
	if p.Limit != 5 || p.Chart == nil || !p.Sort[0].Desc {
		t.Fatalf("unexpected example plan: %+v", p)
	}
}

func TestAggregateName(t *testing.T) {
	cases := []struct {
		a    Aggregate
		want string
	}{
		{Aggregate{Func: "count"}, "count"},
		{Aggregate{Func: "sum", Column: "Amount"}, "sum_Amount"},
		{Aggregate{Func: "sum", Column: "Amount", As: "revenue"}, "revenue"},
	}
	for _, c := range cases {
		if got := c.a.Name(); got != c.want {
			t.Errorf("%+v: Name() = %q, want %q", c.a, got, c.want)
		}
	}
}

func TestExecErrorMessage(t *testing.T) {
	err := &ExecError{Msg: "too many groups", Err: ErrLimit}
	if err.Error() != "too many groups" {
		t.Fatalf("limit errors should not repeat the sentinel: %q", err.Error())
	}
	wrapped := &ExecError{Msg: "invalid plan", Err: errors.New("yaml: line 1")}
	if !strings.HasSuffix(wrapped.Error(), ": yaml: line 1") {
		t.Fatalf("got %q", wrapped.Error())
	}
}
