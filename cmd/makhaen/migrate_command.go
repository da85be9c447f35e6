package main

import (
	"fmt"
	"strconv"

	"github.com/makhaen-survey/makhaen-go/internal/application/container"
	schema "github.com/makhaen-survey/makhaen-go/internal/infrastructure/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(verbose *bool) *cobra.Command {
	var dryRun bool
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the database schema and seed the default accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, settings, logger, err := openStore(ctx, *verbose)
			if err != nil {
				return err
			}
			defer db.Close()

			manager := schema.NewSchemaManager(db, logger)
			snapshot, err := manager.Inspect(ctx)
			if err != nil {
				return fmt.Errorf("inspect schema: %w", err)
			}
			plan := schema.PlanUpgrade(snapshot)

			out := cmd.OutOrStdout()
			if plan.Empty() {
				fmt.Fprintf(out, "Schema is current (version %d)\n", plan.ToVersion)
			} else {
				rows := make([][]string, 0, len(plan.Steps))
				for i, step := range plan.Steps {
					rows = append(rows, []string{strconv.Itoa(i + 1), step.Description, strconv.Itoa(len(step.Statements))})
				}
				fmt.Fprintf(out, "Upgrade plan: version %d -> %d\n", plan.FromVersion, plan.ToVersion)
				fmt.Fprintln(out, renderTable(out, []string{"#", "Step", "Statements"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))
			}
			for _, w := range plan.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}

			if dryRun {
				return nil
			}
			if err := container.PrepareSchema(ctx, db, settings, logger, container.Options{SkipSeed: noSeed}); err != nil {
				return err
			}
			fmt.Fprintln(out, "Migration complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the upgrade plan without applying it")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Do not create or reset the default accounts")
	return cmd
}
