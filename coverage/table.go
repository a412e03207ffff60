package coverage

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders the reports as a console table.
func Table(title string, reports []Report) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Scenario", "Covered", "Size", "%", "Closed",
		"Missing"})

	for _, r := range reports {
		closed := "yes"
		if !r.Closed {
			closed = "no"
			if r.Disabled {
				closed = "no (ignored)"
			}
		}

		t.AppendRow(table.Row{
			r.Name,
			len(r.Covered),
			r.DomainSize,
			fmt.Sprintf("%.1f", r.Percent()),
			closed,
			compactRanges(r.Missing),
		})
	}

	return t.Render()
}

// compactRanges prints ascending values as ranges, such as "1-3, 7".
func compactRanges(values []int) string {
	if len(values) == 0 {
		return "-"
	}

	parts := []string{}
	start := values[0]
	prev := values[0]

	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprint(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}

	for _, v := range values[1:] {
		if v == prev+1 {
			prev = v
			continue
		}

		flush()
		start, prev = v, v
	}

	flush()

	return strings.Join(parts, ", ")
}
