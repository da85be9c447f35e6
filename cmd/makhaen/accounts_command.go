package main

import (
	"fmt"
	"strconv"

	surveystore "github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/survey"
	"github.com/spf13/cobra"
)

func newAccountsCommand(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List operator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, logger, err := openStore(ctx, *verbose)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts, err := surveystore.NewSQLAccountRepository(db, logger).List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(out, "No accounts; run `makhaen migrate` to seed the defaults")
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.Username, string(a.Role)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"ID", "Username", "Role"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
}
