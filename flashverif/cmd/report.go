package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flashverif/coverage"
	"github.com/sarchlab/flashverif/datarecording"
)

func newReportCmd() *cobra.Command {
	var dbFile, xmlFile string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the coverage stored by an earlier run.",
		Long: "`report --db results.sqlite3` prints the coverage stored in a " +
			"result database. `report --xml coverage.xml` prints a coverage " +
			"XML file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reports, err := loadReports(cmd.Context(), dbFile, xmlFile)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), coverage.Table("Coverage", reports))

			return nil
		},
	}

	reportCmd.Flags().StringVar(&dbFile, "db", "",
		"SQLite result database written by run --record")
	reportCmd.Flags().StringVar(&xmlFile, "xml", "",
		"coverage XML file written by run --coverage-xml")

	return reportCmd
}

func loadReports(
	ctx context.Context,
	dbFile, xmlFile string,
) ([]coverage.Report, error) {
	switch {
	case dbFile != "" && xmlFile != "":
		return nil, errors.New("use either --db or --xml, not both")
	case dbFile != "":
		if _, err := os.Stat(dbFile); err != nil {
			return nil, err
		}

		if ctx == nil {
			ctx = context.Background()
		}

		reader := datarecording.NewReader(dbFile)
		defer reader.Close()

		return coverage.LoadReports(ctx, reader)
	case xmlFile != "":
		f, err := os.Open(xmlFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		return coverage.ReadXML(f)
	default:
		return nil, errors.New("either --db or --xml is required")
	}
}
