package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sarchlab/flashverif/scenario"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenarios.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), scenarioTable(scenario.Catalog()))
		},
	}
}

func scenarioTable(scenarios []scenario.Scenario) string {
	t := table.NewWriter()
	t.SetTitle("Scenarios")
	t.AppendHeader(table.Row{"Name", "Repetitions", "Coverage", "Description"})

	for _, s := range scenarios {
		reps := "until covered"
		if s.Repetitions > 0 {
			reps = strconv.Itoa(s.Repetitions)
		}

		cov := "reported"
		if s.Closure {
			cov = "must close"
		}

		t.AppendRow(table.Row{s.Name, reps, cov, s.Description})
	}

	return t.Render()
}
