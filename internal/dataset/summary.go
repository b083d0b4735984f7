package dataset

import (
	"fmt"
	"strings"
)

// SummaryColumnLimit caps per-column detail lines to bound prompt size.
const SummaryColumnLimit = 10

// Summary describes every dataset for use as model context.
func Summary(c *Collection) string {
	if c.Len() == 0 {
		return "No data loaded."
	}
	var lines []string
	for _, name := range c.Names() {
		t, _ := c.Get(name)
		lines = append(lines,
			fmt.Sprintf("\n--- DataFrame: %s ---", name),
			fmt.Sprintf("Total Rows: %d", t.Rows()),
			fmt.Sprintf("Columns: %s", strings.Join(t.ColumnNames(), ", ")),
		)
		for i, col := range t.Columns {
			if i == SummaryColumnLimit {
				break
			}
			sample := "N/A"
			if j := col.NonNull(); j >= 0 {
				sample = col.Text(j)
			}
			lines = append(lines, fmt.Sprintf("- %s (%s): e.g., %s", col.Name, col.Kind, sample))
		}
	}
	return strings.Join(lines, "\n")
}
