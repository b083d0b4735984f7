// Package chart holds the chart artifact produced alongside an answer.
package chart

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Supported chart types.
const (
	TypeBar  = "bar"
	TypeLine = "line"
	TypePie  = "pie"
)

// Chart is a renderer-neutral chart description.
type Chart struct {
	Type   string    `json:"type"`
	Title  string    `json:"title,omitempty"`
	XLabel string    `json:"x_label,omitempty"`
	YLabel string    `json:"y_label,omitempty"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Validate checks the type and that labels and values line up.
func (c *Chart) Validate() error {
	if c == nil {
		return errors.New("chart is nil")
	}
	switch c.Type {
	case TypeBar, TypeLine, TypePie:
	default:
		return fmt.Errorf("unsupported chart type %q (use bar, line or pie)", c.Type)
	}
	if len(c.Labels) != len(c.Values) {
		return fmt.Errorf("chart has %d labels but %d values", len(c.Labels), len(c.Values))
	}
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("chart values must be finite")
		}
	}
	if c.Type == TypePie {
		for _, v := range c.Values {
			if v < 0 {
				return errors.New("pie chart values must not be negative")
			}
		}
	}
	return nil
}

// RenderASCII draws the chart as horizontal bars no wider than width.
// Line and pie charts use the same bar view; pie bars show percentages.
func (c *Chart) RenderASCII(width int) string {
	if c == nil || len(c.Values) == 0 {
		return ""
	}
	if width < 10 {
		width = 10
	}
	var b strings.Builder
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.YLabel + " by " + c.XLabel)
	}
	fmt.Fprintf(&b, "%s [%s]\n", title, c.Type)

	labelW := 0
	for _, l := range c.Labels {
		if n := len([]rune(l)); n > labelW {
			labelW = n
		}
	}
	if labelW > 24 {
		labelW = 24
	}
	maxAbs, total := 0.0, 0.0
	for _, v := range c.Values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
		total += v
	}
	for i, v := range c.Values {
		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(v) / maxAbs * float64(width)))
		}
		value := formatValue(v)
		if c.Type == TypePie && total > 0 {
			value = fmt.Sprintf("%.1f%%", v/total*100)
		}
		fmt.Fprintf(&b, "%-*s | %s %s\n", labelW, truncate(c.Labels[i], labelW), strings.Repeat("█", n), value)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
