package main

import (
	"fmt"
	"strconv"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	surveystore "github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/survey"
	"github.com/spf13/cobra"
)

func newSurveysCommand(verbose *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "surveys",
		Short: "List the most recent survey records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, logger, err := openStore(ctx, *verbose)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := surveystore.NewSQLRecordRepository(db, logger).ListAll(ctx)
			if err != nil {
				return err
			}
			total := len(records)
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, surveyHeaders, surveyRows(records), surveyAlignments))
			fmt.Fprintf(out, "%d of %d records\n", len(records), total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show (0 for all)")
	return cmd
}

var (
	surveyHeaders    = []string{"ID", "Timestamp (UTC)", "Surveyor", "Lat", "Lng", "Accuracy", "Image"}
	surveyAlignments = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
)

func surveyRows(records []*survey.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			r.Surveyor,
			strconv.FormatFloat(r.Lat, 'f', -1, 64),
			strconv.FormatFloat(r.Lng, 'f', -1, 64),
			strconv.FormatFloat(r.Accuracy, 'f', -1, 64),
			r.ImageName,
		})
	}
	return rows
}
