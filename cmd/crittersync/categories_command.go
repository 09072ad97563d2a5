package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"crittersync/internal/catalog"
	"crittersync/internal/reconcile"
	"crittersync/internal/services"
)

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Reconcile critter categories with iNaturalist groups",
	}
	cmd.AddCommand(newCategoriesDiffCommand(ctx))
	cmd.AddCommand(newCategoriesApplyCommand(ctx))
	return cmd
}

func newCategoriesDiffCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the category plan without changing the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd, modePtr(catalog.ReadOnly))
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := planCategories(cmd.Context(), s)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			renderCategoryReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type categoryApplyOutput struct {
	RunID   string                `json:"run_id"`
	DryRun  bool                  `json:"dry_run"`
	Report  *reconcile.Report     `json:"report"`
	Results []catalog.ApplyResult `json:"results,omitempty"`
}

func newCategoriesApplyCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		confirm    bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Write the category plan to the database (dry run unless --yes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := catalog.ReadOnly
			if confirm {
				mode = catalog.ReadWrite
			}
			s, err := ctx.openSession(cmd, modePtr(mode))
			if err != nil {
				return err
			}
			defer s.Close()

			runCtx := services.WithCommand(cmd.Context(), "categories apply")
			executor, release, err := s.writer(runCtx, confirm)
			if err != nil {
				return err
			}
			defer release()

			report, err := planCategories(runCtx, s)
			if err != nil {
				return err
			}
			runCtx = services.WithRunID(runCtx, report.RunID)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			output := categoryApplyOutput{RunID: report.RunID, DryRun: !confirm, Report: report}
			if !confirm {
				if jsonOutput {
					return writeJSON(cmd, output)
				}
				renderCategoryReport(out, report, colorize)
				fmt.Fprintln(out)
				renderDryRun(out, changeCount(report.Plan), "change(s)", colorize)
				return nil
			}

			results, err := executor.Apply(runCtx, report.Plan.Entries)
			output.Results = results
			if err != nil {
				return err
			}
			if jsonOutput {
				if err := writeJSON(cmd, output); err != nil {
					return err
				}
			} else {
				renderCategoryReport(out, report, colorize)
				fmt.Fprintln(out)
				renderApplyResults(out, results, colorize)
			}
			return failedEntriesError(countFailed(results))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Write changes to the MacDive database")
	return cmd
}

func planCategories(ctx context.Context, s *session) (*reconcile.Report, error) {
	entities, err := s.store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return s.runner.Categories(ctx, entities, categories)
}

func changeCount(plan *reconcile.Plan) int {
	n := 0
	for _, entry := range plan.Entries {
		if entry.Changes() {
			n++
		}
	}
	return n
}

// countFailed counts entries that did not reach the catalog: failures and
// entries held back behind them.
func countFailed(results []catalog.ApplyResult) int {
	n := 0
	for _, result := range results {
		if result.Err != nil || result.HeldBack() {
			n++
		}
	}
	return n
}

func failedEntriesError(failed int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d change(s) not applied; see the log for details", failed)
}
